package randval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Source_Uniform(t *testing.T) {
	src := NewSource(Config{RandSeed: 156})

	i := 0
	for i < 1000 {
		i++
		val := src.Uniform(10, 100)
		assert.True(t, val >= 10 && val <= 100, "value %f out of [10, 100]", val)
	}
}

func Test_Source_Uniform_SwappedBounds(t *testing.T) {
	src := NewSource(Config{RandSeed: 86755})

	for i := 0; i < 100; i++ {
		val := src.Uniform(30, 10)
		assert.True(t, val >= 10 && val <= 30, "value %f out of [10, 30]", val)
	}
}

func Test_Source_SameSeedSameSequence(t *testing.T) {
	a := NewSource(Config{RandSeed: 42})
	b := NewSource(Config{RandSeed: 42})

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uniform(0, 1), b.Uniform(0, 1))
	}
}

func Test_Source_Fork(t *testing.T) {
	a := NewSource(Config{RandSeed: 7}).Fork()
	b := NewSource(Config{RandSeed: 7}).Fork()

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uniform(0, 1), b.Uniform(0, 1))
	}
}

func Test_Source_DefaultConfig(t *testing.T) {
	src := NewSource(DefaultConfig())

	val := src.Uniform(DefaultMinValue, DefaultMaxValue)
	assert.True(t, val >= DefaultMinValue && val <= DefaultMaxValue, "value %f out of default range", val)
}
