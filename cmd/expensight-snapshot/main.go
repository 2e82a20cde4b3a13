// Command expensight-snapshot runs the analytics engine over an exported expense file
// without a database.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "expensight-snapshot",
		Short:   "Offline spending snapshots",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newSignatureCommand())

	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
