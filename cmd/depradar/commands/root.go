package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/DoguKody/depradar/lib/lint"
	"github.com/DoguKody/depradar/lib/requirements"
	"github.com/DoguKody/depradar/lib/serviceutil"
	"github.com/DoguKody/depradar/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var verbose *bool
var jsonOutput *bool

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging.")
	jsonOutput = rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON instead of a table.")
}

var rootCmd = &cobra.Command{
	Use:   "depradar",
	Short: "depradar lints, audits and formats python requirements manifests.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readManifests(paths []string) []requirements.File {
	var files []requirements.File
	for _, path := range paths {
		file, err := requirements.ParseFile(path)
		if err != nil {
			serviceutil.Fatal("read manifest", err)
		}
		files = append(files, file)
	}
	return files
}

func printJson(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		serviceutil.Fatal("encode json", err)
	}
	fmt.Println(string(out))
}

func renderFindings(findings []lint.Finding) {
	if *jsonOutput {
		if findings == nil {
			findings = []lint.Finding{}
		}
		printJson(findings)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Severity", "Rule", "Location", "Package", "Message"})

	for _, f := range findings {
		location := f.File
		if f.Line > 0 {
			location = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		t.AppendRow(table.Row{f.Severity, f.Rule, location, f.Package, f.Message})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
