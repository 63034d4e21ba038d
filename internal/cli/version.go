package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcopeg/mondo-sub000/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mondo version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Current()
		if isJSONOutput() {
			outputSuccess(info, nil)
			return nil
		}
		fmt.Printf("mondo %s\n", info.Version)
		if info.Commit != "" {
			fmt.Printf("commit %s\n", info.Commit)
		}
		if info.Date != "" {
			fmt.Printf("built  %s\n", info.Date)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
