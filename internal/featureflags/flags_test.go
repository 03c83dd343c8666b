package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_Booleans(t *testing.T) {
	f := Parse("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, f.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, f.Enabled(name, 1), name)
	}
}

func TestEnabled_Percentages(t *testing.T) {
	f := Parse("always=100%,never=0%,canary=25%,junk=abc%")

	assert.True(t, f.Enabled("always", 0))
	assert.False(t, f.Enabled("never", 1))
	assert.False(t, f.Enabled("junk", 1))
	assert.False(t, f.Enabled("canary", 0))

	first := f.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, f.Enabled("canary", 42))
	}

	on := 0
	for subject := uint(1); subject <= 1000; subject++ {
		if f.Enabled("canary", subject) {
			on++
		}
	}
	assert.InDelta(t, 250, on, 80)
}

func TestParse_NormalizesAndSkipsMalformed(t *testing.T) {
	f := Parse(" bad ,X=ON, threads_full_depth = 20% ,=on,z=")

	assert.Equal(t, map[string]string{"x": "on", "threads_full_depth": "20%"}, f.Values())
	assert.True(t, f.Enabled("x", 0))
}

func TestNilFlags(t *testing.T) {
	var f *Flags
	assert.False(t, f.Enabled(ThreadsFullDepth, 1))
	assert.Empty(t, f.Values())
}
