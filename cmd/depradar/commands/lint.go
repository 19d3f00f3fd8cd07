package commands

import (
	"fmt"
	"os"

	"github.com/DoguKody/depradar/lib/lint"
	"github.com/DoguKody/depradar/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lintCmd)
}

var lintCmd = &cobra.Command{
	Use:   "lint <manifest>...",
	Short: "Runs the offline lint rules over one or more requirements manifests.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "incorrect number of arguments")
			os.Exit(1)
		}

		policy, err := lint.DiscoverPolicy(".")
		if err != nil {
			serviceutil.Fatal("read lint policy", err)
		}
		files := readManifests(args)

		findings := lint.RunWithPolicy(policy, files...)
		renderFindings(findings)

		if lint.HasErrors(findings) {
			os.Exit(1)
		}
	},
}
