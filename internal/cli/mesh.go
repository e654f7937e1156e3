package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"neuroatlas/internal/nrrd"
	"neuroatlas/pkg/mesh"
)

func newExportMeshCmd() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "export-mesh <mask.nrrd> <output.stl>",
		Short: "Export the surface of a binary mask as a binary STL mesh",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			track := newProgress(logger)

			if err := ensureWritable(args[1], overwrite); err != nil {
				return err
			}
			img, err := nrrd.Read(args[0])
			if err != nil {
				return err
			}
			triangles, err := mesh.FromMask(img)
			if err != nil {
				return err
			}
			if err := mesh.WriteSTL(args[1], triangles); err != nil {
				return err
			}
			track.done(fmt.Sprintf("wrote %s, %d triangles", args[1], len(triangles)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace the output file if it exists")
	return cmd
}
