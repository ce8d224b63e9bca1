package redact

import (
	"unicode/utf8"

	"github.com/hfi/llm-secret-redactor/internal/detector"
)

// StreamRestorer applies placeholder restoration to an incremental stream
// of text chunks for one session. It buffers just enough of the stream
// that a placeholder is never emitted half-formed: the last
// maxPlaceholderLen runes are always withheld, which is enough to hold any
// in-progress placeholder in its entirety.
//
// A StreamRestorer is owned by a single stream and is not safe for
// concurrent use.
type StreamRestorer struct {
	detector *detector.Detector
	mapping  map[string]string
	maxLen   int
	buf      []rune
}

// NewStreamRestorer creates a restorer over the session's mapping. With an
// empty mapping every chunk passes through unmodified and unbuffered.
func NewStreamRestorer(d *detector.Detector, mapping map[string]string) *StreamRestorer {
	maxLen := 0
	for ph := range mapping {
		if n := utf8.RuneCountInString(ph); n > maxLen {
			maxLen = n
		}
	}
	return &StreamRestorer{
		detector: d,
		mapping:  mapping,
		maxLen:   maxLen,
	}
}

// Feed appends a chunk and returns whatever restored text is safe to emit
// now; the returned string is empty while the buffer is still within the
// safety margin. Restoration runs over the whole buffer before the cut so
// a completed placeholder straddling the retention boundary is replaced
// rather than split.
func (r *StreamRestorer) Feed(chunk string) string {
	if len(r.mapping) == 0 {
		return chunk
	}

	r.buf = append(r.buf, []rune(chunk)...)
	if len(r.buf) <= 2*r.maxLen {
		return ""
	}

	restored := []rune(r.detector.Restore(string(r.buf), r.mapping))
	safe := len(restored) - r.maxLen
	if safe <= 0 {
		// Replacements shrank the buffer back under the margin.
		r.buf = restored
		return ""
	}
	out := string(restored[:safe])
	r.buf = append(r.buf[:0], restored[safe:]...)
	return out
}

// Flush restores and returns whatever remains buffered, even if shorter
// than the safety margin. The stream is over; nothing can complete a
// half-formed placeholder anymore.
func (r *StreamRestorer) Flush() string {
	if len(r.buf) == 0 {
		return ""
	}
	out := r.detector.Restore(string(r.buf), r.mapping)
	r.buf = r.buf[:0]
	return out
}

// Buffered returns the number of runes currently withheld.
func (r *StreamRestorer) Buffered() int {
	return len(r.buf)
}

// MaxPlaceholderLen returns the safety margin in runes.
func (r *StreamRestorer) MaxPlaceholderLen() int {
	return r.maxLen
}
