package segmenter

import "fmt"

// Framer slices an arbitrary-length PCM byte stream into fixed-size analysis
// windows, retaining the trailing partial window across calls. Frames are
// produced in arrival order; no frame is ever emitted twice and no data is
// dropped.
//
// A Framer is single-owner state: one per session, mutated only by that
// session's worker. It is not safe for concurrent use.
type Framer struct {
	frameBytes int
	rem        []byte
}

// NewFramer creates a Framer producing frames of frameBytes bytes.
func NewFramer(frameBytes int) (*Framer, error) {
	if frameBytes <= 0 {
		return nil, fmt.Errorf("segmenter: frame size %d bytes is invalid", frameBytes)
	}
	return &Framer{frameBytes: frameBytes}, nil
}

// Push appends p to the internal remainder and returns as many complete
// frames as are now available. The returned slices alias an internal buffer
// that remains valid until the next Push; callers that retain frames must
// copy them.
func (f *Framer) Push(p []byte) [][]byte {
	f.rem = append(f.rem, p...)

	n := len(f.rem) / f.frameBytes
	if n == 0 {
		return nil
	}

	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, f.rem[i*f.frameBytes:(i+1)*f.frameBytes])
	}
	f.rem = f.rem[n*f.frameBytes:]
	return frames
}

// Pending returns the number of buffered bytes not yet forming a complete
// frame.
func (f *Framer) Pending() int {
	return len(f.rem)
}

// Reset discards any buffered partial frame.
func (f *Framer) Reset() {
	f.rem = nil
}
