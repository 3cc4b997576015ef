package synth

// Cursor is a rotating index over a fixed sequence.
type Cursor struct {
	index int
}

// Next returns the value under the cursor and advances it, wrapping
// around at the end of seq. seq must not be empty.
func (c *Cursor) Next(seq []interface{}) interface{} {
	// The cursor is keyed by field name and may be shared by sequences
	// of different length.
	i := c.index % len(seq)
	c.index = (i + 1) % len(seq)
	return seq[i]
}
