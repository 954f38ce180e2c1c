package attendance

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kozaktomas/class-attendance/internal/constants"
	"github.com/kozaktomas/class-attendance/internal/imaging"
)

// UnknownLabel is drawn over faces that were not accepted.
const UnknownLabel = "Unknown"

const boxThickness = 2

var (
	acceptedColor = color.RGBA{G: 255, A: 255}
	unknownColor  = color.RGBA{R: 255, A: 255}
	textColor     = color.White
)

// Annotate draws the faces onto a copy of photo: accepted faces get a green
// box and the student name, the rest a red box labeled Unknown. The result is
// scaled down to fit the display bounds.
func Annotate(photo image.Image, faces []Face) image.Image {
	// Regions are in gray-image coordinates, which start at (0, 0) like the canvas.
	canvas := imaging.ToRGBA(photo)

	for _, f := range faces {
		r := f.Region
		boxColor, label := unknownColor, UnknownLabel
		if f.Accepted {
			boxColor, label = acceptedColor, f.Name
		}
		drawBox(canvas, r, boxColor)
		drawLabel(canvas, r, label, boxColor)
	}

	return imaging.FitWithin(canvas, constants.DisplayMaxWidth, constants.DisplayMaxHeight)
}

func drawBox(dst *image.RGBA, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxThickness),
		image.Rect(r.Min.X, r.Max.Y-boxThickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxThickness, r.Max.Y),
		image.Rect(r.Max.X-boxThickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text on a filled strip just above the box, or inside its
// top edge when the box touches the top of the image.
func drawLabel(dst *image.RGBA, r image.Rectangle, text string, background color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	top := r.Min.Y - height - 1
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y + boxThickness
	}
	strip := image.Rect(r.Min.X, top, r.Min.X+width+4, top+height+1).Intersect(dst.Bounds())
	draw.Draw(dst, strip, image.NewUniform(background), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(r.Min.X+2, top+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
