package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursor_RepeatsSequence(t *testing.T) {
	seq := []interface{}{"A", "B", "C"}
	var c Cursor

	var got []interface{}
	for i := 0; i < 3*len(seq); i++ {
		got = append(got, c.Next(seq))
	}

	assert.Equal(t, []interface{}{"A", "B", "C", "A", "B", "C", "A", "B", "C"}, got)
}

func TestCursor_SingleElement(t *testing.T) {
	var c Cursor
	for i := 0; i < 5; i++ {
		assert.Equal(t, 42, c.Next([]interface{}{42}))
	}
}

func TestCursor_SharedAcrossLengths(t *testing.T) {
	var c Cursor
	long := []interface{}{1, 2, 3, 4}
	short := []interface{}{"x", "y"}

	assert.Equal(t, 1, c.Next(long))
	assert.Equal(t, 2, c.Next(long))
	assert.Equal(t, 3, c.Next(long))
	// Index 3 is out of the short sequence and wraps.
	assert.Equal(t, "y", c.Next(short))
	assert.Equal(t, "x", c.Next(short))
}
