package button

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestHoldDetector_Sample(t *testing.T) {
	now := time.Unix(0, 0)

	t.Run("a short press emits pressed and released only", func(t *testing.T) {
		h := NewHoldDetector(5 * time.Second)

		assert.Equal(t, None, h.Sample(false, now))
		assert.Equal(t, Pressed, h.Sample(true, now))
		assert.Equal(t, None, h.Sample(true, now.Add(time.Second)))
		assert.Equal(t, Released, h.Sample(false, now.Add(2*time.Second)))
	})

	t.Run("a held button emits held once", func(t *testing.T) {
		h := NewHoldDetector(5 * time.Second)

		assert.Equal(t, Pressed, h.Sample(true, now))
		assert.Equal(t, None, h.Sample(true, now.Add(4999*time.Millisecond)))
		assert.Equal(t, Held, h.Sample(true, now.Add(5*time.Second)))
		assert.Equal(t, None, h.Sample(true, now.Add(6*time.Second)))
		assert.Equal(t, None, h.Sample(true, now.Add(60*time.Second)))
	})

	t.Run("releasing re-arms the detector", func(t *testing.T) {
		h := NewHoldDetector(5 * time.Second)

		h.Sample(true, now)
		h.Sample(true, now.Add(5*time.Second))
		h.Sample(false, now.Add(6*time.Second))

		assert.Equal(t, Pressed, h.Sample(true, now.Add(7*time.Second)))
		assert.Equal(t, Held, h.Sample(true, now.Add(12*time.Second)))
	})

	t.Run("defaults to five seconds", func(t *testing.T) {
		h := NewHoldDetector(0)

		h.Sample(true, now)
		assert.Equal(t, Held, h.Sample(true, now.Add(DefaultHoldDuration)))
	})
}
