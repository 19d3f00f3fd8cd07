package main

import (
	"context"
	"log/slog"

	"github.com/DoguKody/depradar/lib/osv"
	"github.com/DoguKody/depradar/lib/pypi"
	"github.com/DoguKody/depradar/lib/restyutil"
	"github.com/DoguKody/depradar/lib/serviceutil"
	"github.com/DoguKody/depradar/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	err := telemetry.SetupFromEnv(ctx, "depradar-server")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		telemetry.Shutdown(context.Background())
	}()
	telemetry.InstrumentPerfStats(ctx)

	if !verbose {
		return
	}

	pypi.SetRestyInstrumentOutput(
		restyutil.NewFilesystemOutput(".dev/resty/pypi"),
	)
	osv.SetRestyInstrumentOutput(
		restyutil.NewFilesystemOutput(".dev/resty/osv"),
	)
}
