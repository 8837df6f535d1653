// Package overlay renders detection boxes, match labels, and instruction
// banners onto captured frames for the preview stream.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	boxColor      = color.RGBA{R: 0, G: 217, B: 255, A: 255}
	missColor     = color.RGBA{R: 255, G: 99, B: 71, A: 255}
	labelTextFill = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelBackFill = color.RGBA{R: 0, G: 0, B: 0, A: 180}
)

const (
	strokeWidth = 2
	textPad     = 4
)

// ToRGBA copies an image into a mutable RGBA canvas.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		clone := image.NewRGBA(rgba.Bounds())
		copy(clone.Pix, rgba.Pix)
		return clone
	}
	dst := image.NewRGBA(img.Bounds())
	draw.Copy(dst, img.Bounds().Min, img, img.Bounds(), draw.Src, nil)
	return dst
}

// DrawBox strokes a detection bounding box onto the canvas.
func DrawBox(dst *image.RGBA, box image.Rectangle) {
	strokeRect(dst, box, boxColor)
}

// DrawLabel renders the match label and distance under the box.
func DrawLabel(dst *image.RGBA, box image.Rectangle, name string, distance float64) {
	text := fmt.Sprintf("%s (%.3f)", name, distance)
	drawText(dst, image.Pt(box.Min.X, box.Max.Y+textPad), text)
}

// DrawBanner renders an instruction line across the top of the frame.
func DrawBanner(dst *image.RGBA, text string) {
	drawText(dst, image.Pt(textPad, textPad), text)
}

// DrawMiss renders the no-usable-face notice.
func DrawMiss(dst *image.RGBA, text string) {
	b := dst.Bounds()
	strokeRect(dst, b.Inset(strokeWidth), missColor)
	drawText(dst, image.Pt(textPad, b.Dy()-basicfont.Face7x13.Height-2*textPad), text)
}

// EncodeJPEG encodes the canvas for the preview endpoint.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encoding preview frame: %w", err)
	}
	return buf.Bytes(), nil
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	for i := range strokeWidth {
		top := image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i+1)
		bottom := image.Rect(r.Min.X, r.Max.Y-i-1, r.Max.X, r.Max.Y-i)
		left := image.Rect(r.Min.X+i, r.Min.Y, r.Min.X+i+1, r.Max.Y)
		right := image.Rect(r.Max.X-i-1, r.Min.Y, r.Max.X-i, r.Max.Y)
		for _, line := range []image.Rectangle{top, bottom, left, right} {
			draw.Draw(dst, line, &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
	}
}

func drawText(dst *image.RGBA, at image.Point, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	back := image.Rect(at.X, at.Y, at.X+width+2*textPad, at.Y+face.Height+2*textPad)
	draw.Draw(dst, back.Intersect(dst.Bounds()), &image.Uniform{C: labelBackFill}, image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{C: labelTextFill},
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(at.X + textPad),
			Y: fixed.I(at.Y + textPad + face.Ascent),
		},
	}
	d.DrawString(text)
}
