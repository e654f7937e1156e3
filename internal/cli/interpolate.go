package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"neuroatlas/pkg/stack"
)

func newInterpolateCmd() *cobra.Command {
	var (
		gaps      []float64
		target    float64
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "interpolate <plane-dir> <output-dir>",
		Short: "Fill gaps in a plane stack by linear interpolation",
		Long: `Insert linearly interpolated planes between consecutive input planes so
the output stack has a uniform plane distance. Each gap must be an exact
positive multiple of the target distance; a single --gaps value applies to
every pair.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			track := newProgress(logger)

			planes, err := loadPlanes(args[0])
			if err != nil {
				return err
			}
			out, err := stack.Interpolate(planes, gaps, target)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(args[1], 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			width := len(fmt.Sprint(len(out) - 1))
			for i, p := range out {
				name := fmt.Sprintf("plane_%0*d.png", width, i)
				if err := savePlane(p, filepath.Join(args[1], name), overwrite); err != nil {
					return err
				}
			}

			track.done(fmt.Sprintf("interpolated %d planes into %d", len(planes), len(out)))
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&gaps, "gaps", nil, "physical distance between consecutive input planes in µm")
	cmd.Flags().Float64Var(&target, "target", 0, "plane distance of the output stack in µm")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing plane images")
	cmd.MarkFlagRequired("gaps")
	cmd.MarkFlagRequired("target")

	return cmd
}
