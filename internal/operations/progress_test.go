package operations

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	tests := []struct {
		name    string
		updates []float64
		want    []float64
	}{
		{"increasing", []float64{0, 10, 55.5, 100}, []float64{0, 10, 55.5, 100}},
		{"drops regressions and repeats", []float64{40, 20, 40, 60}, []float64{40, 60}},
		{"clamps", []float64{-10, 250}, []float64{0, 100}},
		{"ignores NaN", []float64{math.NaN(), 5, math.NaN()}, []float64{5}},
		{"nothing after 100", []float64{100, 100, 120}, []float64{100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []float64
			p := NewProgressTracker(func(v float64) { got = append(got, v) })
			for _, u := range tt.updates {
				p.Update(u)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want[len(tt.want)-1], p.Current())
		})
	}
}

func TestProgressTracker_NilSink(t *testing.T) {
	p := NewProgressTracker(nil)
	assert.True(t, p.Update(10))
	assert.False(t, p.Update(5))
	p.Func()(70)
	assert.Equal(t, 70.0, p.Current())
}
