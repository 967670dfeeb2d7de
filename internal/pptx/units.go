// Package pptx reads and writes PowerPoint (Office Open XML) presentations.
//
// It covers what a page-to-slide converter needs: opening a template,
// enumerating its slide layouts, appending slides, placing pictures at an
// absolute position and saving the result. Slides already present in the
// template are kept untouched.
package pptx

import "math"

// Length is a distance in English Metric Units.
type Length int64

// EMUPerCM is the number of EMU in one centimetre.
const EMUPerCM Length = 360000

// Cm converts centimetres to EMU, rounding to the nearest unit.
func Cm(v float64) Length {
	return Length(math.Round(v * float64(EMUPerCM)))
}

// Cm returns the length in centimetres.
func (l Length) Cm() float64 {
	return float64(l) / float64(EMUPerCM)
}
