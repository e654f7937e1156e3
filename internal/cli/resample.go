package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"neuroatlas/internal/nrrd"
)

func newResampleCmd() *cobra.Command {
	var (
		spacing   []float64
		asMask    bool
		compress  bool
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "resample <input.nrrd> <output.nrrd>",
		Short: "Resample a volume to a new per-axis spacing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			track := newProgress(logger)

			img, err := nrrd.Read(args[0])
			if err != nil {
				return err
			}
			if len(spacing) != len(img.Shape) {
				return fmt.Errorf("need %d spacing values for a %d-D volume, got %d",
					len(img.Shape), len(img.Shape), len(spacing))
			}

			out, err := img.Resample(spacing)
			if err != nil {
				return err
			}
			if asMask {
				out = out.Threshold(0.5)
			}

			if err := nrrd.Write(args[1], out, compress, overwrite); err != nil {
				return err
			}
			track.done(fmt.Sprintf("resampled %v -> %v", img.Shape, out.Shape))
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&spacing, "spacing", nil, "target per-axis spacing in µm")
	cmd.Flags().BoolVar(&asMask, "mask", false, "re-threshold the result into a binary mask")
	cmd.Flags().BoolVar(&compress, "compress", true, "gzip-compress the volume data")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace the output file if it exists")
	cmd.MarkFlagRequired("spacing")

	return cmd
}
