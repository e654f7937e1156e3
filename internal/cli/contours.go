package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"neuroatlas/internal/nrrd"
	"neuroatlas/pkg/annotation"
	"neuroatlas/pkg/config"
	"neuroatlas/pkg/contour"
	"neuroatlas/pkg/mask"
	"neuroatlas/pkg/volume"
)

// slicePlanes cuts a 3-D volume into 2-D planes along the given axis. The
// first remaining axis becomes the plane rows, the second the columns, and
// their spacing is returned alongside.
func slicePlanes(img *volume.Image, axis int) ([]volume.Plane, [2]float64, error) {
	if img.Dim() != 3 {
		return nil, [2]float64{}, fmt.Errorf("slicing requires a 3-D volume, got %d-D", img.Dim())
	}
	if axis < 0 || axis > 2 {
		return nil, [2]float64{}, fmt.Errorf("slice axis %d out of range", axis)
	}
	var rest []int
	for k := 0; k < 3; k++ {
		if k != axis {
			rest = append(rest, k)
		}
	}
	spacing := [2]float64{img.Spacing[rest[0]], img.Spacing[rest[1]]}

	strides := img.Strides()
	planes := make([]volume.Plane, img.Shape[axis])
	for i := range planes {
		p := volume.NewPlane(img.Shape[rest[0]], img.Shape[rest[1]])
		for r := 0; r < p.Rows; r++ {
			for c := 0; c < p.Cols; c++ {
				p.Set(r, c, img.Data[i*strides[axis]+r*strides[rest[0]]+c*strides[rest[1]]])
			}
		}
		planes[i] = p
	}
	return planes, spacing, nil
}

// splitHemispheres intersects a region mask with the right-hemisphere mask
// and its complement, yielding the "<label> (right)" and "<label> (left)"
// region pair.
func splitHemispheres(label string, region, hemisphere *volume.Image) (map[string]*volume.Image, error) {
	right, err := mask.And(region, hemisphere)
	if err != nil {
		return nil, fmt.Errorf("splitting region %s: %w", label, err)
	}
	left, err := mask.AndNot(region, hemisphere)
	if err != nil {
		return nil, fmt.Errorf("splitting region %s: %w", label, err)
	}
	return map[string]*volume.Image{
		label + " (right)": right,
		label + " (left)":  left,
	}, nil
}

func newExportContoursCmd() *cobra.Command {
	var (
		configPath string
		maskSpecs  []string
		axis       int
		segLength  float64
		useVoxels  bool
		holes      bool
		stampIndex bool
		overwrite  bool
		hemiPath   string
	)

	cmd := &cobra.Command{
		Use:   "export-contours <image.nrrd> <output-pattern>",
		Short: "Export region mask contours as labelme annotation files",
		Long: `Slice an image volume and its region masks into planes, trace the mask
boundaries on each plane and write one labelme JSON document per plane. The
output pattern must contain a single %s placeholder which is replaced by the
zero-padded plane index, e.g. annotations/plane_%s.json.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			track := newProgress(logger)

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if axis < 0 {
				axis = cfg.Contours.Axis
			}
			if segLength < 0 {
				segLength = cfg.Contours.SegmentLength
			}
			if !cmd.Flags().Changed("include-holes") {
				holes = cfg.Contours.IncludeHoles
			}
			if len(maskSpecs) == 0 {
				return fmt.Errorf("at least one --mask label=path is required")
			}

			img, err := nrrd.Read(args[0])
			if err != nil {
				return err
			}
			planes, spacing, err := slicePlanes(img, axis)
			if err != nil {
				return err
			}

			var hemisphere *volume.Image
			if hemiPath != "" {
				if hemisphere, err = nrrd.Read(hemiPath); err != nil {
					return err
				}
			}

			regions := make(map[string]*volume.Image, len(maskSpecs))
			for _, spec := range maskSpecs {
				label, path, ok := strings.Cut(spec, "=")
				if !ok {
					return fmt.Errorf("mask %q is not of the form label=path", spec)
				}
				m, err := nrrd.Read(path)
				if err != nil {
					return err
				}
				if hemisphere == nil {
					regions[label] = m
					continue
				}
				halves, err := splitHemispheres(label, m, hemisphere)
				if err != nil {
					return err
				}
				for name, half := range halves {
					regions[name] = half
				}
			}

			opts := contour.Options{
				SegmentLength: segLength,
				UseVoxels:     useVoxels,
				IncludeHoles:  holes,
				Workers:       cfg.Processing.NumWorkers,
			}
			contours := make(map[string][][]contour.Polyline, len(regions))
			for label, m := range regions {
				maskPlanes, _, err := slicePlanes(m, axis)
				if err != nil {
					return err
				}
				if len(maskPlanes) != len(planes) {
					return fmt.Errorf("mask %s has %d planes, image has %d",
						label, len(maskPlanes), len(planes))
				}
				cs, err := contour.ExtractPlanes(maskPlanes, spacing, opts)
				if err != nil {
					return fmt.Errorf("extracting contours for %s: %w", label, err)
				}
				contours[label] = cs
				logger.Debug("extracted contours", "label", label, "planes", len(cs))
			}

			paths, err := annotation.ExportLabelMe(planes, contours, args[1],
				annotation.Options{StampIndex: stampIndex, Overwrite: overwrite})
			if err != nil {
				return err
			}
			track.done(fmt.Sprintf("wrote %d annotation files", len(paths)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringArrayVar(&maskSpecs, "mask", nil, "region mask as label=path.nrrd (repeatable)")
	cmd.Flags().IntVar(&axis, "axis", -1, "slicing axis (default from config)")
	cmd.Flags().Float64Var(&segLength, "segment-length", -1, "contour vertex spacing in µm (default from config)")
	cmd.Flags().BoolVar(&useVoxels, "voxels", false, "measure segment length in voxels instead of µm")
	cmd.Flags().BoolVar(&holes, "include-holes", true, "trace enclosed background regions as separate contours")
	cmd.Flags().BoolVar(&stampIndex, "stamp-index", false, "stamp the plane index into the embedded preview image")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing annotation files")
	cmd.Flags().StringVar(&hemiPath, "hemisphere-mask", "", "right-hemisphere mask; splits every region into (right) and (left) parts")

	return cmd
}
