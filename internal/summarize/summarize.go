// Package summarize condenses an ordered acquisition series into one summary
// image per series: the running mean over all frames, stored as a 16-bit
// grayscale TIFF.
package summarize

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"
)

// ErrSeries reports an empty series or frames of mismatched size.
var ErrSeries = errors.New("invalid image series")

// Mean accumulates the running mean over the given image files. All frames
// must share one size; frames are converted to grayscale before averaging.
func Mean(paths []string) (*image.Gray16, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrSeries)
	}

	var acc []float64
	var bounds image.Rectangle
	for n, path := range paths {
		frame, err := imaging.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading frame %s: %w", path, err)
		}
		gray := imaging.Grayscale(frame)

		if acc == nil {
			bounds = gray.Bounds()
			acc = make([]float64, bounds.Dx()*bounds.Dy())
		} else if gray.Bounds().Dx() != bounds.Dx() || gray.Bounds().Dy() != bounds.Dy() {
			return nil, fmt.Errorf("%w: frame %s is %v, want %v", ErrSeries, path, gray.Bounds().Size(), bounds.Size())
		}

		// Running mean keeps the accumulator bounded for long series.
		w := 1 / float64(n+1)
		for y := 0; y < bounds.Dy(); y++ {
			for x := 0; x < bounds.Dx(); x++ {
				i := y*bounds.Dx() + x
				v := float64(gray.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y).R)
				acc[i] = (1-w)*acc[i] + w*v
			}
		}
	}

	out := image.NewGray16(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for i, v := range acc {
		// 8-bit means are widened into the 16-bit range.
		s := v * 256
		if s > 65535 {
			s = 65535
		}
		p := uint16(s)
		out.Pix[2*i] = uint8(p >> 8)
		out.Pix[2*i+1] = uint8(p)
	}
	return out, nil
}

// WriteMean computes the series mean and stores it at outPath as a
// deflate-compressed 16-bit TIFF.
func WriteMean(paths []string, outPath string) error {
	mean, err := Mean(paths)
	if err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("writing summary image: %w", err)
	}
	defer f.Close()
	if err := tiff.Encode(f, mean, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("writing summary image %s: %w", outPath, err)
	}
	return f.Close()
}
