package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/DoguKody/depradar/lib/pypi"
	"github.com/DoguKody/depradar/lib/requirements"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var outdatedIndexUrl *string

func init() {
	outdatedIndexUrl = outdatedCmd.Flags().String("index", "https://pypi.org", "Base url of the package index to check against.")
	rootCmd.AddCommand(outdatedCmd)
}

type outdatedRow struct {
	Package string `json:"package"`
	Pinned  string `json:"pinned"`
	Latest  string `json:"latest"`
}

var outdatedCmd = &cobra.Command{
	Use:   "outdated [--index <url>] <manifest>...",
	Short: "Lists pinned packages that are behind the latest stable release.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "incorrect number of arguments")
			os.Exit(1)
		}

		files := readManifests(args)
		client := pypi.NewClient(pypi.ClientOptions{BaseUrl: *outdatedIndexUrl})

		// First pin wins, the same package pinned again later in the
		// set is the duplicate lint's problem.
		pins := map[string]string{}
		var order []string
		for _, file := range files {
			for _, spec := range file.Specifiers() {
				version, pinned := spec.Pinned()
				if !pinned {
					continue
				}
				if _, seen := pins[spec.Canonical]; seen {
					continue
				}
				pins[spec.Canonical] = version
				order = append(order, spec.Canonical)
			}
		}

		rows := []outdatedRow{}
		for _, name := range order {
			project, err := client.Lookup(cmd.Context(), name)
			if err != nil {
				slog.Warn("skipping package, index lookup failed", "package", name, "err", err)
				continue
			}
			latest, ok := project.LatestRelease()
			if !ok {
				continue
			}
			current, errCurrent := requirements.ParseVersion(pins[name])
			newest, errNewest := requirements.ParseVersion(latest.Version)
			if errCurrent != nil || errNewest != nil {
				continue
			}
			if current.Compare(newest) < 0 {
				rows = append(rows, outdatedRow{
					Package: name,
					Pinned:  pins[name],
					Latest:  latest.Version,
				})
			}
		}

		if *jsonOutput {
			printJson(rows)
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Package", "Pinned", "Latest"})
		for _, row := range rows {
			t.AppendRow(table.Row{row.Package, row.Pinned, row.Latest})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
