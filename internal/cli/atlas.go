package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"neuroatlas/pkg/atlas"
)

func newAtlasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atlas",
		Short: "Inspect and transform atlas directories",
	}
	cmd.AddCommand(newAtlasInfoCmd(), newAtlasExportCmd())
	return cmd
}

func newAtlasInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <atlas-dir>",
		Short: "Print the contents of an atlas directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := atlas.Load(args[0], nil, nil)
			if err != nil {
				return err
			}

			if a.Reference != nil {
				fmt.Printf("reference: shape %v, spacing %v µm\n",
					a.Reference.Shape, a.Reference.Spacing)
			} else {
				fmt.Println("reference: none")
			}
			for _, name := range sortedKeys(a.Labels) {
				img := a.Labels[name]
				fmt.Printf("label %s: shape %v\n", name, img.Shape)
			}
			for _, name := range sortedKeys(a.Masks) {
				img := a.Masks[name]
				count := 0
				for _, v := range img.Data {
					if v != 0 {
						count++
					}
				}
				fmt.Printf("mask %s: shape %v, %d voxels\n", name, img.Shape, count)
			}
			return nil
		},
	}
}

func newAtlasExportCmd() *cobra.Command {
	var (
		labels    []string
		masks     []string
		spacing   []float64
		cropLo    []int
		cropHi    []int
		combine   string
		overwrite bool
		compress  bool
	)

	cmd := &cobra.Command{
		Use:   "export <atlas-dir> <output-dir>",
		Short: "Export an atlas, optionally resampled, cropped or with merged masks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			track := newProgress(logger)

			a, err := atlas.Load(args[0], labels, masks)
			if err != nil {
				return err
			}
			if spacing != nil {
				if a, err = a.Resample(spacing); err != nil {
					return err
				}
				logger.Info("resampled atlas", "spacing", spacing)
			}
			if cropLo != nil || cropHi != nil {
				if a, err = a.Crop(cropLo, cropHi); err != nil {
					return err
				}
				if a.Reference != nil {
					logger.Info("cropped atlas", "shape", a.Reference.Shape)
				} else {
					logger.Info("cropped atlas")
				}
			}
			if combine != "" {
				merged, err := a.CombineMasks(sortedKeys(a.Masks))
				if err != nil {
					return err
				}
				a.Masks[combine] = merged
			}

			err = a.Export(args[1], atlas.ExportOptions{
				Compress:  compress,
				Overwrite: overwrite,
			})
			if err != nil {
				return err
			}
			track.done(fmt.Sprintf("exported atlas to %s", args[1]))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&labels, "labels", nil, "label volumes to include (default all)")
	cmd.Flags().StringSliceVar(&masks, "masks", nil, "region masks to include (default all)")
	cmd.Flags().Float64SliceVar(&spacing, "resample", nil, "resample the atlas to this per-axis spacing in µm")
	cmd.Flags().IntSliceVar(&cropLo, "crop-lo", nil, "inclusive lower crop corner in voxels")
	cmd.Flags().IntSliceVar(&cropHi, "crop-hi", nil, "exclusive upper crop corner in voxels")
	cmd.Flags().StringVar(&combine, "combine", "", "add a union of all masks under this name")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing atlas files")
	cmd.Flags().BoolVar(&compress, "compress", true, "gzip-compress the volume data")

	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
