package commands

import (
	"fmt"
	"os"

	"github.com/DoguKody/depradar/lib/sbom"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sbomCmd)
}

var sbomCmd = &cobra.Command{
	Use:   "sbom <manifest>...",
	Short: "Renders a CycloneDX bill of materials for the given manifests.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "incorrect number of arguments")
			os.Exit(1)
		}
		printJson(sbom.Build(readManifests(args)))
	},
}
