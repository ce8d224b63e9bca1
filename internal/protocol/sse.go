// Package protocol adapts provider wire formats to the redaction
// middleware: Server-Sent Events framing and the OpenAI streaming chunk
// shape. Transport itself (dialing the provider, TLS) is the caller's
// concern.
package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// SSEParser parses Server-Sent Events format
type SSEParser struct {
	reader *bufio.Reader
}

// NewSSEParser creates a new SSE parser
func NewSSEParser(r io.Reader) *SSEParser {
	return &SSEParser{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event
func (p *SSEParser) ReadEvent() (eventType string, data []byte, err error) {
	var dataLines [][]byte

	for {
		line, err := p.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				// Return accumulated data on EOF
				break
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				break
			}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = strings.TrimSpace(string(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			data := bytes.TrimPrefix(line, []byte("data:"))
			data = bytes.TrimSpace(data)
			dataLines = append(dataLines, data)
		case bytes.HasPrefix(line, []byte(":")):
			// Comment, ignore
			continue
		}
	}

	if len(dataLines) > 0 {
		data = bytes.Join(dataLines, []byte("\n"))
	}

	return eventType, data, nil
}

// SSEWriter writes Server-Sent Events format
type SSEWriter struct {
	writer io.Writer
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{writer: w}
}

// WriteEvent writes an SSE event
func (w *SSEWriter) WriteEvent(eventType string, data []byte) error {
	var buf bytes.Buffer

	if eventType != "" {
		fmt.Fprintf(&buf, "event: %s\n", eventType)
	}

	lines := bytes.Split(data, []byte("\n"))
	for _, line := range lines {
		fmt.Fprintf(&buf, "data: %s\n", line)
	}

	buf.WriteString("\n")

	_, err := w.writer.Write(buf.Bytes())
	return err
}
