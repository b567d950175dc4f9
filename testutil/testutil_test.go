package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRNGDeterminism(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)
	assert.Equal(t, a.Bytes(256), b.Bytes(256))
	assert.Equal(t, a.Name(3), b.Name(3))

	a.Reset()
	c := NewRNG(a.Seed())
	assert.Equal(t, a.Bytes(16), c.Bytes(16))
}

func TestRNGName(t *testing.T) {
	r := NewRNG(1)
	name := r.Name(7)
	assert.LessOrEqual(t, len(name), 15)
	assert.Equal(t, "f07", name[:3])
}
