package pptx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCm(t *testing.T) {
	assert.Equal(t, Length(10080000), Cm(28))
	assert.Equal(t, Length(5670000), Cm(15.75))
	assert.Equal(t, Length(1), Cm(0.0000027), "rounds to the nearest unit")
	assert.InDelta(t, 11.1364, Cm(11.1364).Cm(), 1e-6)
}
