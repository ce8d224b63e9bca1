package protocol

import (
	"context"
	"io"
	"sync"

	"github.com/hfi/llm-secret-redactor/internal/redact"
)

// RestoreSSEStream reads an SSE response stream, routes delta content
// through the middleware's streaming restoration, and writes restored SSE
// events to w. Non-content frames (role announcements, unparseable
// events) pass through untouched; the [DONE] terminator is written only
// after the buffered tail has been flushed.
//
// Restored content is re-framed into synthetic chunks: buffering shifts
// text between chunk boundaries, so a 1:1 frame correspondence with the
// upstream is not preserved, only the content and its order.
func RestoreSSEStream(ctx context.Context, mw *redact.Middleware, sessionID string, r io.Reader, w io.Writer) error {
	parser := NewSSEParser(r)
	writer := NewSSEWriter(w)

	deltas := make(chan string)
	restored, err := mw.ProcessStreamingResponse(ctx, sessionID, deltas)
	if err != nil {
		return err
	}

	// Synthetic chunks reuse the first metadata seen upstream.
	var metaMu sync.Mutex
	var meta map[string]interface{}
	snapshotMeta := func() map[string]interface{} {
		metaMu.Lock()
		defer metaMu.Unlock()
		return meta
	}

	raw := make(chan []byte)
	writerDone := make(chan error, 1)

	go func() {
		var werr error
		rawCh, restoredCh := raw, restored
		for rawCh != nil || restoredCh != nil {
			select {
			case data, open := <-rawCh:
				if !open {
					rawCh = nil
					continue
				}
				if werr == nil {
					werr = writer.WriteEvent("", data)
				}
			case content, open := <-restoredCh:
				if !open {
					restoredCh = nil
					continue
				}
				if werr != nil {
					continue
				}
				payload, serr := SerializeStreamChunk(&StreamChunk{
					Delta:    content,
					Metadata: snapshotMeta(),
				})
				if serr != nil {
					werr = serr
					continue
				}
				werr = writer.WriteEvent("", payload)
			}
		}
		writerDone <- werr
	}()

	passthrough := func(data []byte) error {
		select {
		case raw <- append([]byte(nil), data...):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var feedErr error
	doneSeen := false
	for {
		_, data, rerr := parser.ReadEvent()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			feedErr = rerr
			break
		}

		chunk, perr := ParseStreamChunk(data)
		if perr != nil {
			if feedErr = passthrough(data); feedErr != nil {
				break
			}
			continue
		}
		if chunk.IsDone {
			doneSeen = true
			break
		}

		metaMu.Lock()
		if meta == nil {
			meta = chunk.Metadata
		}
		metaMu.Unlock()

		if chunk.Delta == "" {
			if feedErr = passthrough(data); feedErr != nil {
				break
			}
			continue
		}

		select {
		case deltas <- chunk.Delta:
		case <-ctx.Done():
			feedErr = ctx.Err()
		}
		if feedErr != nil {
			break
		}
	}

	// Closing the delta channel flushes the restorer's buffered tail into
	// the restored channel before it closes.
	close(deltas)
	close(raw)
	werr := <-writerDone

	if feedErr != nil {
		return feedErr
	}
	if werr != nil {
		return werr
	}
	if doneSeen {
		return writer.WriteEvent("", []byte("[DONE]"))
	}
	return nil
}
