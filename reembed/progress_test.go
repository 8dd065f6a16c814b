package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	t.Run("increments to completion", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, "acme", 100, 10)

		tracker.Start()
		tracker.Increment(25)
		tracker.Increment(25)
		tracker.Increment(50)

		assert.Greater(t, tracker.Elapsed(), time.Duration(0))
		output := buf.String()
		assert.Contains(t, output, "acme: 100/100")
		assert.Contains(t, output, "100.0%")
		assert.Contains(t, output, "units/s")
	})

	t.Run("finish jumps to total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, "acme", 100, 10)

		tracker.Start()
		tracker.Update(75)
		tracker.Finish()

		output := buf.String()
		assert.Contains(t, output, "100/100")
		assert.True(t, strings.HasSuffix(output, "\n"))
	})

	t.Run("caps at total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, "acme", 100, 10)

		tracker.Start()
		tracker.Increment(150)

		assert.Contains(t, buf.String(), "100/100")
		assert.NotContains(t, buf.String(), "150")
	})

	t.Run("zero total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, "acme", 0, 10)

		tracker.Start()
		tracker.Finish()

		assert.Contains(t, buf.String(), "0/0 (100.0%)")
	})

	t.Run("silent until started", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, "acme", 100, 10)

		tracker.Increment(10)
		tracker.Update(20)
		tracker.Finish()

		assert.Empty(t, buf.String())
		assert.Zero(t, tracker.Elapsed())
	})

	t.Run("reports on interval", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, "acme", 1000, 100)
		tracker.Start()

		tracker.Update(50)
		assert.Empty(t, buf.String(), "under interval")

		tracker.Update(100)
		assert.NotEmpty(t, buf.String(), "at interval")

		buf.Reset()
		tracker.Update(150)
		assert.Empty(t, buf.String(), "under next interval")

		tracker.Update(250)
		lines := strings.Split(buf.String(), "\r")
		last := lines[len(lines)-1]
		assert.Contains(t, last, "250/1000")
		assert.Contains(t, last, "25.0%")
	})

	t.Run("non-positive interval reports every update", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, "acme", 3, 0)
		tracker.Start()

		tracker.Increment(1)
		assert.Contains(t, buf.String(), "1/3")
	})
}
