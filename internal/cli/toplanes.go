package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"neuroatlas/internal/nrrd"
	"neuroatlas/pkg/volume"
)

func newToPlanesCmd() *cobra.Command {
	var (
		stackOrient string
		planeOrient []string
		indices     []int
		overwrite   bool
	)

	cmd := &cobra.Command{
		Use:   "to-planes <input.nrrd> <output-dir>",
		Short: "Slice a volume back into an ordered stack of plane images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			track := newProgress(logger)

			if len(planeOrient) != 2 {
				return fmt.Errorf("plane orientation takes exactly two values")
			}

			img, err := nrrd.Read(args[0])
			if err != nil {
				return err
			}
			planes, spacing, err := volume.ToStack(img, stackOrient, [2]string{planeOrient[0], planeOrient[1]}, indices)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(args[1], 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			width := len(fmt.Sprint(len(planes) - 1))
			for i, p := range planes {
				name := fmt.Sprintf("plane_%0*d.png", width, i)
				if err := savePlane(p, filepath.Join(args[1], name), overwrite); err != nil {
					return err
				}
			}

			track.done(fmt.Sprintf("wrote %d planes to %s, spacing %v",
				len(planes), args[1], spacing))
			return nil
		},
	}

	cmd.Flags().StringVar(&stackOrient, "stack-orientation", "I", "anatomical direction of the first plane")
	cmd.Flags().StringSliceVar(&planeOrient, "plane-orientation", []string{"P", "R"}, "anatomical directions of the in-plane row and column origins")
	cmd.Flags().IntSliceVar(&indices, "indices", nil, "plane indices to extract (default all)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing plane images")

	return cmd
}
