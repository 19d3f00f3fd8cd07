package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the depradar version.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("depradar 1.0.0")
	},
}
