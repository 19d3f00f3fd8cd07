package commands

import (
	"fmt"
	"os"

	"github.com/DoguKody/depradar/lib/lint"
	"github.com/DoguKody/depradar/lib/osv"
	"github.com/DoguKody/depradar/lib/pypi"
	"github.com/DoguKody/depradar/lib/restyutil"
	"github.com/DoguKody/depradar/lib/serviceutil"
	"github.com/DoguKody/depradar/services/audit"

	"github.com/spf13/cobra"
)

var auditIndexUrl *string
var auditOsvUrl *string

func init() {
	auditIndexUrl = auditCmd.Flags().String("index", "https://pypi.org", "Base url of the package index to audit against.")
	auditOsvUrl = auditCmd.Flags().String("osv", "https://api.osv.dev", "Base url of the OSV vulnerability api.")
	rootCmd.AddCommand(auditCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit [--index <url>] [--osv <url>] <manifest>...",
	Short: "Audits manifests against the package index and the OSV vulnerability database.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "incorrect number of arguments")
			os.Exit(1)
		}

		if *verbose {
			pypi.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/pypi"))
			osv.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/osv"))
		}

		policy, err := lint.DiscoverPolicy(".")
		if err != nil {
			serviceutil.Fatal("read lint policy", err)
		}
		files := readManifests(args)

		findings := lint.RunWithPolicy(policy, files...)
		online, err := audit.CheckRegistry(
			cmd.Context(),
			pypi.NewClient(pypi.ClientOptions{BaseUrl: *auditIndexUrl}),
			osv.NewClient(osv.ClientOptions{BaseUrl: *auditOsvUrl}),
			files,
		)
		if err != nil {
			serviceutil.Fatal("registry checks failed", err)
		}
		findings = append(findings, online...)
		lint.SortFindings(findings)
		renderFindings(findings)

		if lint.HasErrors(findings) {
			os.Exit(1)
		}
	},
}
