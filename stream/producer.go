// Package stream holds the HTTP-agnostic pieces of torque's streaming I/O:
// chunked response production and incremental multipart request parsing.
// Neither type here knows about torque.Request/Response, so the root
// package is the only thing that imports this one.
package stream

import (
	"bufio"
	"io"
	"net/http"
)

// Producer pulls the next chunk of a streaming response body. It returns
// the chunk (possibly empty), whether more chunks follow, and any error
// that should abort the stream. Drive repeatedly calls a Producer until
// more is false or an error occurs.
type Producer func() (chunk []byte, more bool, err error)

// Drive pulls chunks from p and writes each one to w, flushing after every
// chunk so the client sees it immediately under chunked transfer encoding.
func Drive(w *ChunkedWriter, p Producer) error {
	for {
		chunk, more, err := p()
		if err != nil {
			return err
		}
		if len(chunk) > 0 {
			if err := w.WriteChunk(chunk); err != nil {
				return err
			}
		}
		if !more {
			return nil
		}
	}
}

// ChunkedWriter wraps an http.ResponseWriter (and its Flusher, when present)
// so each WriteChunk call, or a Write followed by Flush, reaches the client
// immediately instead of waiting on net/http's own buffering. Write alone
// only buffers.
type ChunkedWriter struct {
	w       io.Writer
	flusher http.Flusher
	bw      *bufio.Writer
}

// NewChunkedWriter builds a ChunkedWriter over hrw. flusher may be nil, in
// which case Flush is a no-op (some test ResponseRecorders don't implement
// http.Flusher).
func NewChunkedWriter(hrw io.Writer, flusher http.Flusher) *ChunkedWriter {
	return &ChunkedWriter{w: hrw, flusher: flusher, bw: bufio.NewWriter(hrw)}
}

// Write buffers p and is safe to call repeatedly; call Flush to push
// buffered bytes out as one chunk.
func (c *ChunkedWriter) Write(p []byte) (int, error) {
	return c.bw.Write(p)
}

// WriteChunk writes p and immediately flushes it as its own chunk.
func (c *ChunkedWriter) WriteChunk(p []byte) error {
	if _, err := c.bw.Write(p); err != nil {
		return err
	}
	return c.Flush()
}

// Flush pushes any buffered bytes to the client and, if the underlying
// writer supports it, flushes the HTTP connection so the chunk is sent
// without waiting for more data.
func (c *ChunkedWriter) Flush() error {
	if err := c.bw.Flush(); err != nil {
		return err
	}
	if c.flusher != nil {
		c.flusher.Flush()
	}
	return nil
}
