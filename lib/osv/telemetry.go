package osv

import (
	"github.com/DoguKody/depradar/lib/restyutil"
	"github.com/DoguKody/depradar/lib/telemetry"
)

var tracer = telemetry.Tracer("depradar.lib.osv")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
