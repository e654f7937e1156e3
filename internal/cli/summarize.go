package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"neuroatlas/internal/summarize"
)

func newSummarizeCmd() *cobra.Command {
	var (
		output    string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "summarize <image-dir>",
		Short: "Average an image series into a single summary image",
		Long: `Compute the pixel-wise mean of an acquisition series and write it as a
16-bit grayscale TIFF. Useful for collapsing repeated exposures of the same
plane into one representative image before stack assembly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			track := newProgress(logger)

			if err := ensureWritable(output, overwrite); err != nil {
				return err
			}
			files, err := listPlaneFiles(args[0])
			if err != nil {
				return err
			}
			logger.Info("averaging series", "frames", len(files))

			if err := summarize.WriteMean(files, output); err != nil {
				return err
			}
			track.done(fmt.Sprintf("wrote %s", output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "summary.tiff", "output TIFF path")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace the output file if it exists")

	return cmd
}
