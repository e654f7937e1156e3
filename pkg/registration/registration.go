// Package registration defines the boundary to an external image
// registration engine. The engine estimates transforms between a fixed and a
// moving volume over an ordered stage pipeline; this package only consumes
// the transform lists it returns and never depends on the engine's
// optimizer.
package registration

import (
	"context"
	"errors"
	"fmt"

	"neuroatlas/pkg/volume"
)

// ErrNoTransforms reports an application request without any transform.
var ErrNoTransforms = errors.New("no transforms to apply")

// TransformKind names a per-stage transform model, coarse to fine.
type TransformKind string

const (
	Translation   TransformKind = "Translation"
	Rigid         TransformKind = "Rigid"
	Affine        TransformKind = "Affine"
	Deformable    TransformKind = "SyNOnly"
	DeformableAgg TransformKind = "SyNAggro"
)

// Stage is one step of a multi-stage registration pipeline. Schedules run
// coarse to fine; their lengths must match.
type Stage struct {
	Transform TransformKind

	// Metric is the similarity metric the stage optimizes, e.g. "mattes".
	Metric string

	// Convergence caps the iteration count per schedule level.
	Convergence []int

	// SmoothingSigmas and ShrinkFactors give the per-level blur and
	// downsampling of the image pyramid.
	SmoothingSigmas []float64
	ShrinkFactors   []int
}

// Validate checks the stage schedules for consistency.
func (s Stage) Validate() error {
	if s.Transform == "" {
		return fmt.Errorf("registration stage without transform kind")
	}
	n := len(s.Convergence)
	if len(s.SmoothingSigmas) != n || len(s.ShrinkFactors) != n {
		return fmt.Errorf("registration stage %s: schedule lengths %d/%d/%d differ",
			s.Transform, n, len(s.SmoothingSigmas), len(s.ShrinkFactors))
	}
	return nil
}

// Transform is an opaque handle to one estimated transform, usually a file
// the engine wrote. Inverted marks handles that must be inverted when they
// are applied (affine transforms reused in the fixed-to-moving direction).
type Transform struct {
	Path     string
	Inverted bool
}

// Result is the outcome of a multi-stage registration: forward transforms
// map moving to fixed, inverse transforms map fixed to moving, both ordered
// for application. Warped volumes are optional.
type Result struct {
	Forward []Transform
	Inverse []Transform

	WarpedMoving *volume.Image
	WarpedFixed  *volume.Image
}

// Engine estimates and applies transforms. Implementations wrap an external
// registration backend; estimation can run long, so both calls take a
// context.
type Engine interface {
	// Run estimates the stage pipeline between fixed and moving and returns
	// the accumulated transform lists.
	Run(ctx context.Context, fixed, moving *volume.Image, stages []Stage) (Result, error)

	// Apply resamples moving into the fixed grid through an ordered
	// transform list.
	Apply(ctx context.Context, fixed, moving *volume.Image, transforms []Transform) (*volume.Image, error)
}

// ApplyTransforms pushes a volume through an ordered transform list using
// the given engine, validating the request first. Binary masks stay binary:
// the warped result is re-thresholded when the input was a mask.
func ApplyTransforms(ctx context.Context, engine Engine, fixed, moving *volume.Image, transforms []Transform) (*volume.Image, error) {
	if len(transforms) == 0 {
		return nil, ErrNoTransforms
	}
	if err := fixed.Validate(); err != nil {
		return nil, err
	}
	if err := moving.Validate(); err != nil {
		return nil, err
	}
	wasMask := moving.IsBinary() && moving.Pixel == volume.Uint8

	warped, err := engine.Apply(ctx, fixed, moving, transforms)
	if err != nil {
		return nil, fmt.Errorf("applying transforms: %w", err)
	}
	if wasMask {
		warped = warped.Threshold(0.5)
	}
	return warped, nil
}

// RunPipeline validates all stages, then runs the engine.
func RunPipeline(ctx context.Context, engine Engine, fixed, moving *volume.Image, stages []Stage) (Result, error) {
	if len(stages) == 0 {
		return Result{}, fmt.Errorf("registration pipeline without stages")
	}
	for i, s := range stages {
		if err := s.Validate(); err != nil {
			return Result{}, fmt.Errorf("stage %d: %w", i, err)
		}
	}
	if err := fixed.Validate(); err != nil {
		return Result{}, err
	}
	if err := moving.Validate(); err != nil {
		return Result{}, err
	}
	return engine.Run(ctx, fixed, moving, stages)
}

// DefaultStages is the standard coarse-to-fine pipeline: translation, rigid,
// affine, then deformable refinement.
func DefaultStages() []Stage {
	schedule := func(kind TransformKind, iters []int) Stage {
		n := len(iters)
		sigmas := make([]float64, n)
		shrinks := make([]int, n)
		for i := 0; i < n; i++ {
			sigmas[i] = float64(n - 1 - i)
			shrinks[i] = 1 << (n - 1 - i)
		}
		return Stage{
			Transform:       kind,
			Metric:          "mattes",
			Convergence:     iters,
			SmoothingSigmas: sigmas,
			ShrinkFactors:   shrinks,
		}
	}
	return []Stage{
		schedule(Translation, []int{200, 200, 100}),
		schedule(Rigid, []int{200, 200, 100}),
		schedule(Affine, []int{200, 200, 100}),
		schedule(Deformable, []int{100, 70, 50, 20}),
	}
}
