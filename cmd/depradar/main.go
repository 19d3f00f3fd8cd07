package main

import (
	"context"

	"github.com/DoguKody/depradar/cmd/depradar/commands"
	"github.com/DoguKody/depradar/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "depradar")
	commands.ExecuteContext(context.Background())
}
