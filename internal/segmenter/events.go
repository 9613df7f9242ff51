package segmenter

// EventKind enumerates the per-window outcomes of the segmentation state
// machine.
type EventKind int

const (
	// EventNone means the window produced no boundary.
	EventNone EventKind = iota

	// EventStart means speech began; Sample is the padded start offset.
	EventStart

	// EventEnd means speech ended; Sample is the padded end offset.
	EventEnd
)

// Event is the engine's per-window output before stitching. Sample is in
// mono samples since stream start and is meaningful only for EventStart and
// EventEnd.
type Event struct {
	Kind   EventKind
	Sample int64
}

// Segment is one closed span of speech: the half-open sample range
// [Start, End) plus the audio bytes covering it. Immutable once emitted.
type Segment struct {
	// Start is the padded start offset, in mono samples since stream start.
	Start int64

	// End is the padded end offset, in mono samples since stream start.
	End int64

	// PCM is the 16-bit mono PCM covering [Start, End).
	PCM []byte
}

// Samples returns the segment length in samples.
func (s Segment) Samples() int64 {
	return s.End - s.Start
}
