package commands

import (
	"fmt"
	"os"

	"github.com/DoguKody/depradar/lib/requirements"
	"github.com/DoguKody/depradar/lib/serviceutil"

	"github.com/spf13/cobra"
)

var fmtWrite *bool

func init() {
	fmtWrite = fmtCmd.Flags().Bool("write", false, "Rewrite the files in place instead of printing to stdout.")
	rootCmd.AddCommand(fmtCmd)
}

var fmtCmd = &cobra.Command{
	Use:   "fmt [--write] <manifest>...",
	Short: "Prints manifests in canonical form.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "incorrect number of arguments")
			os.Exit(1)
		}

		for _, path := range args {
			file, err := requirements.ParseFile(path)
			if err != nil {
				serviceutil.Fatal("read manifest", err)
			}
			formatted := requirements.Format(file)

			if !*fmtWrite {
				fmt.Print(formatted)
				continue
			}
			err = os.WriteFile(path, []byte(formatted), 0644)
			if err != nil {
				serviceutil.Fatal("write manifest", err)
			}
		}
	},
}
