package report

import (
	"github.com/hedzr/go-ringbuf/v2/mpmc"

	"github.com/srg/tremolink/internal/history"
)

// DefaultSampleCapacity bounds how many raw frequency samples are retained
// for report export.
const DefaultSampleCapacity uint32 = 512

// SampleBuffer retains the most recent raw frequency samples for report
// export. When full, the oldest samples are overwritten.
type SampleBuffer struct {
	ring mpmc.RichOverlappedRingBuffer[history.SamplePoint]
}

// NewSampleBuffer creates a buffer holding up to capacity samples
// (DefaultSampleCapacity when 0).
func NewSampleBuffer(capacity uint32) *SampleBuffer {
	if capacity == 0 {
		capacity = DefaultSampleCapacity
	}
	return &SampleBuffer{
		ring: mpmc.NewOverlappedRingBuffer[history.SamplePoint](capacity),
	}
}

// Add records one sample, overwriting the oldest when full.
func (b *SampleBuffer) Add(p history.SamplePoint) {
	_, _ = b.ring.EnqueueM(p)
}

// Snapshot returns the buffered samples in arrival order without losing them.
func (b *SampleBuffer) Snapshot() []history.SamplePoint {
	var out []history.SamplePoint
	for !b.ring.IsEmpty() {
		p, err := b.ring.Dequeue()
		if err != nil {
			break
		}
		out = append(out, p)
	}
	// Re-enqueue so later snapshots still see the samples.
	for _, p := range out {
		_, _ = b.ring.EnqueueM(p)
	}
	return out
}
