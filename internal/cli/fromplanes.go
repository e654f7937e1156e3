package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"neuroatlas/internal/nrrd"
	"neuroatlas/pkg/config"
	"neuroatlas/pkg/volume"
)

func newFromPlanesCmd() *cobra.Command {
	var (
		configPath  string
		stackOrient string
		planeOrient []string
		rotationDeg float64
		spacing     []float64
		height      float64
		asMask      bool
		resampleTo  []float64
		compress    bool
		overwrite   bool
	)

	cmd := &cobra.Command{
		Use:   "from-planes <plane-dir> <output.nrrd>",
		Short: "Assemble plane images into a canonically oriented volume",
		Long: `Assemble a directory of plane images into a 3-D volume. Planes are
ordered by the number embedded in their filenames, stacked along the given
anatomical axis and reoriented into the right-anterior-inferior canonical
frame, so downstream tools never need to know how the stack was acquired.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			track := newProgress(logger)

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if height == 0 {
				height = cfg.Processing.PlaneHeight
			}
			if spacing == nil {
				spacing = cfg.Processing.PlaneSpacing[:]
			}
			if len(spacing) != 2 || len(planeOrient) != 2 {
				return fmt.Errorf("plane spacing and orientation each take exactly two values")
			}

			planes, err := loadPlanes(args[0])
			if err != nil {
				return err
			}
			logger.Info("loaded planes", "count", len(planes),
				"rows", planes[0].Rows, "cols", planes[0].Cols)

			rotation := rotationDeg * math.Pi / 180
			if math.Abs(math.Abs(rotation)-math.Pi/4) < 1e-12 {
				logger.Warn("plane rotation of 45 degrees cannot be rounded to a " +
					"canonical orientation; the volume keeps its natural orientation")
			}

			img, err := volume.FromStack(planes, volume.StackOptions{
				StackOrientation: stackOrient,
				PlaneOrientation: [2]string{planeOrient[0], planeOrient[1]},
				PlaneRotation:    rotation,
				PlaneSpacing:     [2]float64{spacing[0], spacing[1]},
				PlaneHeight:      height,
				AsMask:           asMask,
				Spacing:          resampleTo,
			})
			if err != nil {
				return err
			}

			if err := nrrd.Write(args[1], img, compress, overwrite); err != nil {
				return err
			}
			track.done(fmt.Sprintf("wrote %s, shape %v, spacing %v",
				args[1], img.Shape, img.Spacing))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&stackOrient, "stack-orientation", "I", "anatomical direction of the first plane (R, L, A, P, I or S)")
	cmd.Flags().StringSliceVar(&planeOrient, "plane-orientation", []string{"P", "R"}, "anatomical directions of the in-plane row and column origins")
	cmd.Flags().Float64Var(&rotationDeg, "rotation", 0, "in-plane rotation correction in degrees")
	cmd.Flags().Float64SliceVar(&spacing, "plane-spacing", nil, "in-plane sample spacing in µm (row, column)")
	cmd.Flags().Float64Var(&height, "plane-height", 0, "distance between consecutive planes in µm")
	cmd.Flags().BoolVar(&asMask, "mask", false, "threshold the assembled volume into a binary mask")
	cmd.Flags().Float64SliceVar(&resampleTo, "resample", nil, "resample the volume to this per-axis spacing in µm")
	cmd.Flags().BoolVar(&compress, "compress", true, "gzip-compress the volume data")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace the output file if it exists")

	return cmd
}
