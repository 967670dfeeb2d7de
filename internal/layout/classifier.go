// Package layout decides where a rasterized page goes on a slide.
package layout

import "fmt"

// Default thresholds. Images whose ratio falls in [DefaultLowThreshold,
// DefaultHighThreshold] are treated as exact 16:9 to absorb pixel rounding.
const (
	DefaultLowThreshold  = 1.75
	DefaultHighThreshold = 1.80
)

// Class is the layout class of an image.
type Class int

const (
	Tall Class = iota
	Widescreen
	Wide
)

func (c Class) String() string {
	switch c {
	case Tall:
		return "tall"
	case Widescreen:
		return "widescreen"
	case Wide:
		return "wide"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Classifier maps an aspect ratio to a Class.
type Classifier struct {
	Low  float64
	High float64
}

// DefaultClassifier uses DefaultLowThreshold and DefaultHighThreshold.
func DefaultClassifier() Classifier {
	return Classifier{Low: DefaultLowThreshold, High: DefaultHighThreshold}
}

// ExactClassifier has no tolerance band: only ratio == canvasRatio is Widescreen.
func ExactClassifier(canvasRatio float64) Classifier {
	return Classifier{Low: canvasRatio, High: canvasRatio}
}

// Classify expects ratio > 0. Both thresholds are inclusive on the Widescreen side.
func (c Classifier) Classify(ratio float64) Class {
	switch {
	case ratio < c.Low:
		return Tall
	case ratio > c.High:
		return Wide
	default:
		return Widescreen
	}
}
