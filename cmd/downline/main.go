// Command downline runs the filter-sort-aggregate engine offline over a JSON
// file of member records, or over the canned dataset when no file is given.
//
// Usage:
//
//	downline report --file members.json --level 1 --sort-by commission --sort-order asc
//	downline validate --file members.json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "downline",
		Short:        "Inspect BG affiliate downline records offline",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("file", "f", "", "JSON array of member records (default: canned dataset)")

	root.AddCommand(newReportCmd(), newValidateCmd())
	return root
}

func fileFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("file")
	if err != nil {
		panic(fmt.Sprintf("file flag not registered: %v", err))
	}
	return path
}
