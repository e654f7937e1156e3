package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version information shown by `neuroatlas --version`.
// Called from main with values injected at build time.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute builds the command tree and runs it. It returns an error when the
// invoked command fails; usage errors are reported by cobra directly.
func Execute() error {
	var verbose bool

	root := &cobra.Command{
		Use:          "neuroatlas",
		Short:        "Anatomical volume and mask processing for plane-stack workflows",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newFromPlanesCmd(),
		newToPlanesCmd(),
		newResampleCmd(),
		newInterpolateCmd(),
		newOptimizeMaskCmd(),
		newExportContoursCmd(),
		newExportMeshCmd(),
		newAtlasCmd(),
		newSummarizeCmd(),
		newConfigCmd(),
	)

	return root.ExecuteContext(context.Background())
}
