package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

const (
	iconSize       = 44
	processingArcs = 8
)

var (
	iconIdle       []byte
	iconRecording  []byte
	iconError      []byte
	iconProcessing [][]byte
)

var (
	red    = color.RGBA{R: 255, G: 59, B: 48, A: 255}
	amber  = color.RGBA{R: 255, G: 159, B: 10, A: 255}
	dark   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	yellow = color.RGBA{R: 255, G: 204, B: 0, A: 255}
)

func init() {
	dotR := float64(iconSize) / 6.5
	iconIdle = renderIcon(nil, 0)
	iconRecording = renderIcon(&red, dotR)
	iconError = renderErrorIcon()
	for i := range processingArcs {
		iconProcessing = append(iconProcessing, renderProcessingFrame(i))
	}
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encodePNG: " + err.Error())
	}
	return buf.Bytes()
}

// drawDisc paints the black disc with an optional coloured dot in the middle.
func drawDisc(img *image.RGBA, dot *color.RGBA, dotR float64) {
	c := float64(iconSize) / 2
	r := c - 1
	for y := range iconSize {
		for x := range iconSize {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			switch {
			case dot != nil && d <= dotR:
				img.Set(x, y, dot)
			case d <= r:
				img.Set(x, y, color.Black)
			}
		}
	}
}

func renderIcon(dot *color.RGBA, dotR float64) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	drawDisc(img, dot, dotR)
	return encodePNG(img)
}

// renderProcessingFrame lights one eighth of a ring; frame selects which.
func renderProcessingFrame(frame int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	drawDisc(img, nil, 0)
	c := float64(iconSize) / 2
	outer, inner := c-4, c-10
	span := 2 * math.Pi / processingArcs
	start := float64(frame) * span
	for y := range iconSize {
		for x := range iconSize {
			fx, fy := float64(x)+0.5-c, float64(y)+0.5-c
			d := math.Hypot(fx, fy)
			if d < inner || d > outer {
				continue
			}
			a := math.Atan2(fy, fx) + math.Pi
			if a >= start && a < start+span {
				img.Set(x, y, amber)
			}
		}
	}
	return encodePNG(img)
}

func renderErrorIcon() []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	drawDisc(img, &red, float64(iconSize)/6.5)

	// Yellow "!" badge in the bottom-right corner.
	s := float64(iconSize)
	badgeR := s * 0.34
	cx, cy := s-badgeR+0.5, s-badgeR+0.5
	bangHW := badgeR * 0.24
	for y := range iconSize {
		for x := range iconSize {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			if math.Hypot(fx-cx, fy-cy) > badgeR {
				continue
			}
			localY := (fy - (cy - badgeR*0.7)) / (badgeR * 1.4)
			localX := math.Abs(fx - cx)
			isBar := localX <= bangHW && localY >= 0.1 && localY <= 0.62
			isDot := localX <= bangHW && localY >= 0.72 && localY <= 0.85
			if isBar || isDot {
				img.Set(x, y, dark)
			} else {
				img.Set(x, y, yellow)
			}
		}
	}
	return encodePNG(img)
}
