package layout

import "fmt"

// Canvas is the drawable area of one slide, in centimetres.
type Canvas struct {
	Width  float64
	Height float64
}

// DefaultCanvas is a 16:9 slide 28 cm wide.
var DefaultCanvas = Canvas{Width: 28.0, Height: 15.75}

// Ratio returns Width/Height.
func (c Canvas) Ratio() float64 {
	return c.Width / c.Height
}

// Rect is an image placement on the canvas, in centimetres.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Rect) String() string {
	return fmt.Sprintf("(x=%.4f y=%.4f w=%.4f h=%.4f)", r.X, r.Y, r.Width, r.Height)
}

// Engine computes slide rects for images on a fixed canvas.
type Engine struct {
	canvas     Canvas
	classifier Classifier
}

// NewEngine creates a layout engine. The canvas ratio must lie inside the
// classifier's Widescreen band so Tall and Wide rects stay on the canvas.
func NewEngine(canvas Canvas, classifier Classifier) (*Engine, error) {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return nil, fmt.Errorf("canvas must have positive size, got %vx%v", canvas.Width, canvas.Height)
	}
	if classifier.Low > classifier.High {
		return nil, fmt.Errorf("low threshold %v is above high threshold %v", classifier.Low, classifier.High)
	}
	if r := canvas.Ratio(); r < classifier.Low || r > classifier.High {
		return nil, fmt.Errorf("canvas ratio %.4f is outside [%v, %v]", r, classifier.Low, classifier.High)
	}
	return &Engine{canvas: canvas, classifier: classifier}, nil
}

// Canvas returns the engine's canvas.
func (e *Engine) Canvas() Canvas {
	return e.canvas
}

// Place classifies ratio and lays it out.
func (e *Engine) Place(ratio float64) (Class, Rect) {
	class := e.classifier.Classify(ratio)
	return class, Layout(ratio, class, e.canvas.Width, e.canvas.Height)
}

// Layout computes the placement of an image with the given ratio and class.
//
// Tall images span the full height and are centred horizontally, wide images
// span the full width and are centred vertically, and widescreen images fill
// the slide.
func Layout(ratio float64, class Class, canvasWidth, canvasHeight float64) Rect {
	switch class {
	case Tall:
		h := canvasHeight
		w := h * ratio
		return Rect{X: (canvasWidth - w) / 2, Y: 0, Width: w, Height: h}
	case Wide:
		w := canvasWidth
		h := w / ratio
		return Rect{X: 0, Y: (canvasHeight - h) / 2, Width: w, Height: h}
	default:
		return Rect{X: 0, Y: 0, Width: canvasWidth, Height: canvasHeight}
	}
}
