// Package watermark overlays identifying text on rendered pages.
package watermark

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"math"
	"strings"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

// ErrUnsupportedImage is returned when the page bytes are not a decodable PNG or JPEG.
var ErrUnsupportedImage = errors.New("unsupported page image")

const (
	// Angle is the rotation of the text, counterclockwise on screen.
	Angle = -math.Pi / 4
	// SizeDivisor sets the font size to image width / SizeDivisor.
	SizeDivisor = 20
)

// Ink is black at 15% opacity.
var Ink = color.NRGBA{R: 0, G: 0, B: 0, A: 38}

var boldFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// Stamp draws text across the centre of the encoded image src and returns the result as
// PNG. The output has the same dimensions as the input.
func Stamp(src []byte, text string) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	if text = strings.TrimSpace(text); text != "" {
		if err := overlay(dst, text); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return out.Bytes(), nil
}

func overlay(dst *image.RGBA, text string) error {
	f, err := boldFont()
	if err != nil {
		return fmt.Errorf("load font: %w", err)
	}
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    math.Max(float64(w)/SizeDivisor, 1),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create face: %w", err)
	}
	defer face.Close()

	label := renderText(face, text)
	lb := label.Bounds()
	tw, th := float64(lb.Dx()), float64(lb.Dy())
	cx, cy := float64(w)/2, float64(h)/2
	sin, cos := math.Sincos(Angle)

	// rotate the label about its own centre and place that centre on the page centre
	m := f64.Aff3{
		cos, -sin, cx - cos*tw/2 + sin*th/2,
		sin, cos, cy - sin*tw/2 - cos*th/2,
	}
	xdraw.BiLinear.Transform(dst, m, label, lb, draw.Over, nil)
	return nil
}

// renderText draws text in Ink on a transparent canvas sized to its extent.
func renderText(face font.Face, text string) *image.RGBA {
	metrics := face.Metrics()
	width := font.MeasureString(face, text).Ceil()
	height := (metrics.Ascent + metrics.Descent).Ceil()
	canvas := image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))

	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(Ink),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
	}
	d.DrawString(text)
	return canvas
}

// ReaderText identifies the reader of a page: "<name> #<userID> · <address> · <date>".
func ReaderText(name, userID, address string, now time.Time) string {
	parts := make([]string, 0, 3)
	who := strings.TrimSpace(name)
	if userID != "" {
		who = strings.TrimSpace(who + " #" + userID)
	}
	if who != "" {
		parts = append(parts, who)
	}
	if address != "" {
		parts = append(parts, address)
	}
	parts = append(parts, now.Format(time.DateOnly))
	return strings.Join(parts, " · ")
}

// PreviewText is the watermark of anonymous previews: the date only.
func PreviewText(now time.Time) string {
	return now.Format(time.DateOnly)
}
