package registration

import (
	"context"
	"errors"
	"testing"

	"neuroatlas/pkg/volume"
)

// fakeEngine records calls and warps by returning a clone of the moving
// volume with a constant offset, enough to observe mask re-thresholding.
type fakeEngine struct {
	runStages       []Stage
	appliedForward  []Transform
	warpOffset      float64
	failApplication error
}

func (f *fakeEngine) Run(_ context.Context, fixed, moving *volume.Image, stages []Stage) (Result, error) {
	f.runStages = stages
	return Result{
		Forward: []Transform{{Path: "stage0GenericAffine.mat"}},
		Inverse: []Transform{{Path: "stage0GenericAffine.mat", Inverted: true}},
	}, nil
}

func (f *fakeEngine) Apply(_ context.Context, fixed, moving *volume.Image, transforms []Transform) (*volume.Image, error) {
	if f.failApplication != nil {
		return nil, f.failApplication
	}
	f.appliedForward = transforms
	out := moving.Clone()
	for i := range out.Data {
		out.Data[i] += f.warpOffset
	}
	return out, nil
}

func testVolume(t *testing.T) *volume.Image {
	t.Helper()
	img, err := volume.New(make([]float64, 8), []int{2, 2, 2}, []float64{1, 1, 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return img
}

func TestRunPipeline(t *testing.T) {
	engine := &fakeEngine{}
	fixed, moving := testVolume(t), testVolume(t)

	result, err := RunPipeline(context.Background(), engine, fixed, moving, DefaultStages())
	if err != nil {
		t.Fatalf("RunPipeline() error = %v", err)
	}
	if len(engine.runStages) != 4 {
		t.Errorf("engine saw %d stages, want 4", len(engine.runStages))
	}
	if len(result.Forward) != 1 || len(result.Inverse) != 1 {
		t.Errorf("result transforms = %d/%d, want 1/1", len(result.Forward), len(result.Inverse))
	}
	if !result.Inverse[0].Inverted {
		t.Error("inverse affine transform is not marked for inversion")
	}
}

func TestRunPipelineValidatesStages(t *testing.T) {
	engine := &fakeEngine{}
	fixed, moving := testVolume(t), testVolume(t)

	bad := []Stage{{Transform: Rigid, Convergence: []int{100, 50}, SmoothingSigmas: []float64{1}, ShrinkFactors: []int{2, 1}}}
	if _, err := RunPipeline(context.Background(), engine, fixed, moving, bad); err == nil {
		t.Error("RunPipeline() with mismatched schedules: expected error, got nil")
	}
	if _, err := RunPipeline(context.Background(), engine, fixed, moving, nil); err == nil {
		t.Error("RunPipeline() without stages: expected error, got nil")
	}
}

func TestApplyTransformsRethresholdsMasks(t *testing.T) {
	engine := &fakeEngine{warpOffset: 0.4}
	fixed := testVolume(t)
	moving := testVolume(t)
	moving.Data[0] = 1
	moving = moving.Cast(volume.Uint8)

	warped, err := ApplyTransforms(context.Background(), engine, fixed, moving, []Transform{{Path: "t.mat"}})
	if err != nil {
		t.Fatalf("ApplyTransforms() error = %v", err)
	}
	if !warped.IsBinary() {
		t.Error("warped mask is not binary")
	}
	// 1 + 0.4 thresholds to 1, 0 + 0.4 to 0.
	if warped.Data[0] != 1 || warped.Data[1] != 0 {
		t.Errorf("warped samples = %v, %v, want 1, 0", warped.Data[0], warped.Data[1])
	}
}

func TestApplyTransformsValidation(t *testing.T) {
	engine := &fakeEngine{}
	fixed, moving := testVolume(t), testVolume(t)

	if _, err := ApplyTransforms(context.Background(), engine, fixed, moving, nil); !errors.Is(err, ErrNoTransforms) {
		t.Errorf("ApplyTransforms() without transforms error = %v, want ErrNoTransforms", err)
	}

	engine.failApplication = errors.New("backend unavailable")
	if _, err := ApplyTransforms(context.Background(), engine, fixed, moving, []Transform{{Path: "t.mat"}}); err == nil {
		t.Error("ApplyTransforms() with failing engine: expected error, got nil")
	}
}

func TestDefaultStages(t *testing.T) {
	stages := DefaultStages()
	if len(stages) != 4 {
		t.Fatalf("DefaultStages() returned %d stages, want 4", len(stages))
	}
	for i, s := range stages {
		if err := s.Validate(); err != nil {
			t.Errorf("stage %d invalid: %v", i, err)
		}
	}
	if stages[0].Transform != Translation || stages[3].Transform != Deformable {
		t.Errorf("stage order = %v ... %v, want Translation ... SyNOnly", stages[0].Transform, stages[3].Transform)
	}
}
