package logging

import (
	"bytes"
	"io"
)

// linePrefixWriter buffers partial lines and prepends a prefix to each
// complete line before forwarding it downstream. The prefix is computed
// fresh per line rather than fixed at construction, so a caller whose
// prefix changes over the writer's lifetime — the watch-mode run counter
// in NewWatchLogger, chiefly — stamps each line with the value that was
// current when that line closed, not a value that went stale mid-stream.
type linePrefixWriter struct {
	prefixFn func() string
	writer   io.Writer
	buffer   bytes.Buffer
}

func newLinePrefixWriter(writer io.Writer, prefixFn func() string) *linePrefixWriter {
	return &linePrefixWriter{prefixFn: prefixFn, writer: writer}
}

// Write implements io.Writer, buffering until a newline closes a line.
func (w *linePrefixWriter) Write(p []byte) (int, error) {
	n := len(p)
	if _, err := w.buffer.Write(p); err != nil {
		return 0, err
	}

	for {
		line, err := w.buffer.ReadBytes('\n')
		if err != nil {
			// Incomplete line: push it back and wait for the rest.
			if len(line) > 0 {
				if _, wErr := w.buffer.Write(line); wErr != nil {
					return 0, wErr
				}
			}
			break
		}

		if _, err := w.writer.Write([]byte(w.prefixFn())); err != nil {
			return 0, err
		}
		if _, err := w.writer.Write(line); err != nil {
			return 0, err
		}
	}

	return n, nil
}
