package annotation

import (
	"image"
	"image/draw"
	"strconv"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Plane index stamps reuse one set of pre-rendered glyph bitmaps. The table
// is process-scoped and immutable after first use; rendering it lazily keeps
// the package free of init-time side effects.
var (
	glyphOnce  sync.Once
	glyphTable map[rune]*image.Alpha
)

const glyphRunes = "0123456789"

func glyphs() map[rune]*image.Alpha {
	glyphOnce.Do(func() {
		face := basicfont.Face7x13
		glyphTable = make(map[rune]*image.Alpha, len(glyphRunes))
		for _, r := range glyphRunes {
			dst := image.NewAlpha(image.Rect(0, 0, face.Width, face.Height))
			d := font.Drawer{
				Dst:  dst,
				Src:  image.White,
				Face: face,
				Dot:  fixed.P(0, face.Ascent),
			}
			d.DrawString(string(r))
			glyphTable[r] = dst
		}
	})
	return glyphTable
}

// stampIndex draws the decimal plane index into the upper-left corner of the
// image, white on the existing background.
func stampIndex(img draw.Image, index int) {
	table := glyphs()
	x := 2
	for _, r := range strconv.Itoa(index) {
		g, ok := table[r]
		if !ok {
			continue
		}
		b := g.Bounds()
		target := image.Rect(x, 2, x+b.Dx(), 2+b.Dy())
		draw.DrawMask(img, target, image.White, image.Point{}, g, b.Min, draw.Over)
		x += b.Dx() + 1
	}
}
