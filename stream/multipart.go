package stream

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/aofei/mimesniffer"
)

// ErrPartTooLarge is returned by MultipartReader.Next when a part exceeds
// the configured per-part byte limit.
var ErrPartTooLarge = fmt.Errorf("stream: multipart part exceeds limit")

// sniffLen is how many leading bytes of a file part get sniffed for its
// actual content type, matching the sample size net/http's own sniffer
// uses.
const sniffLen = 512

// Part is one field of an incrementally-parsed multipart/form-data body.
// For form fields, Value holds the decoded content. For file fields under
// the configured buffering threshold, content lands in Data; larger ones
// spool to a temp file as they stream in rather than held in memory, per
// the streaming I/O component's "never buffer the whole upload" requirement.
// SniffedContentType is set from the part's own bytes, independent of
// whatever Content-Type the client declared in Header.
type Part struct {
	FieldName          string
	FileName           string
	Header             http.Header
	Value              string
	SniffedContentType string

	size     int64
	data     []byte
	tempFile *os.File
}

// IsFile reports whether this part carries an uploaded file rather than a
// plain form value.
func (p *Part) IsFile() bool { return p.FileName != "" }

// Spooled reports whether this file part's content landed on disk rather
// than in memory.
func (p *Part) Spooled() bool { return p.tempFile != nil }

// Size returns the number of bytes read for this part's content.
func (p *Part) Size() int64 { return p.size }

// Data returns the part's content for a non-spooled file part (or the raw
// bytes of a form value). It is nil for spooled file parts; use Open
// instead.
func (p *Part) Data() []byte { return p.data }

// TempPath returns the path of the spooled temp file, valid only after the
// MultipartReader has finished copying this part's content.
func (p *Part) TempPath() string {
	if p.tempFile == nil {
		return ""
	}
	return p.tempFile.Name()
}

// Open reopens the spooled temp file for reading.
func (p *Part) Open() (*os.File, error) {
	return os.Open(p.TempPath())
}

// Remove deletes the spooled temp file. Callers should Defer this once a
// part has been consumed.
func (p *Part) Remove() error {
	if p.tempFile == nil {
		return nil
	}
	return os.Remove(p.tempFile.Name())
}

// MultipartReader parses a multipart/form-data body one part at a time,
// spooling file parts to disk as their bytes arrive instead of holding the
// whole request body in memory the way http.Request.ParseMultipartForm
// does.
type MultipartReader struct {
	mr               *multipart.Reader
	maxBufferedBytes int64
	maxPartSize      int64
	tempDir          string
}

// NewMultipartReader builds a MultipartReader over body using boundary
// extracted from contentType. File parts whose content fits within
// maxBufferedBytes stay in memory (Part.Data); anything past that spills to
// a temp file under tempDir ("" uses the OS default). maxPartSize bounds
// each individual part's total size (0 means unbounded); maxBufferedBytes
// of 0 spools every file part regardless of size.
func NewMultipartReader(body io.Reader, contentType string, maxBufferedBytes, maxPartSize int64, tempDir string) (*MultipartReader, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("stream: invalid multipart content type: %w", err)
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, fmt.Errorf("stream: multipart content type missing boundary")
	}
	return &MultipartReader{
		mr:               multipart.NewReader(body, boundary),
		maxBufferedBytes: maxBufferedBytes,
		maxPartSize:      maxPartSize,
		tempDir:          tempDir,
	}, nil
}

// Next returns the next Part, or io.EOF when the body is exhausted. Small
// file parts are read fully into memory; larger ones are spooled to a temp
// file before Next returns. Form-value parts are read directly into
// Part.Value.
func (m *MultipartReader) Next() (*Part, error) {
	fp, err := m.mr.NextPart()
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	part := &Part{
		FieldName: fp.FormName(),
		FileName:  fp.FileName(),
		Header:    http.Header(fp.Header),
	}

	if !part.IsFile() {
		b, err := readLimited(fp, m.maxPartSize)
		if err != nil {
			return nil, err
		}
		part.Value = string(b)
		part.data = b
		part.size = int64(len(b))
		return part, nil
	}

	spill := &spillWriter{maxMemory: m.maxBufferedBytes, tempDir: m.tempDir}
	sniff := &cappedBuffer{cap: sniffLen}
	dest := io.MultiWriter(spill, sniff)

	var src io.Reader = fp
	if m.maxPartSize > 0 {
		src = &limitedReader{r: fp, n: m.maxPartSize}
	}

	n, err := io.Copy(dest, src)
	if err != nil {
		spill.cleanup()
		return nil, err
	}

	part.size = n
	part.SniffedContentType = mimesniffer.Sniff(sniff.buf.Bytes())
	if spill.spooled() {
		spill.tmp.Close()
		part.tempFile = spill.tmp
	} else {
		part.data = append([]byte(nil), spill.buf.Bytes()...)
	}

	return part, nil
}

// spillWriter buffers into memory up to maxMemory bytes; once a write would
// exceed that, it moves the buffered bytes and every later write to a temp
// file in tempDir, so small parts never touch disk while large ones never
// sit fully in memory.
type spillWriter struct {
	maxMemory int64
	tempDir   string
	buf       bytes.Buffer
	tmp       *os.File
}

func (s *spillWriter) Write(p []byte) (int, error) {
	if s.tmp != nil {
		return s.tmp.Write(p)
	}
	if int64(s.buf.Len()+len(p)) <= s.maxMemory {
		return s.buf.Write(p)
	}

	tmp, err := os.CreateTemp(s.tempDir, "torque-upload-*")
	if err != nil {
		return 0, err
	}
	if _, err := tmp.Write(s.buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, err
	}
	s.buf.Reset()
	s.tmp = tmp
	return s.tmp.Write(p)
}

func (s *spillWriter) spooled() bool { return s.tmp != nil }

func (s *spillWriter) cleanup() {
	if s.tmp != nil {
		s.tmp.Close()
		os.Remove(s.tmp.Name())
	}
}

// cappedBuffer captures only the first cap bytes written to it and discards
// the rest, enough to sniff a content type without holding an entire large
// part in memory.
type cappedBuffer struct {
	buf bytes.Buffer
	cap int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if remaining := c.cap - c.buf.Len(); remaining > 0 {
		if len(p) < remaining {
			remaining = len(p)
		}
		c.buf.Write(p[:remaining])
	}
	return len(p), nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	lr := &limitedReader{r: r, n: max}
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if lr.n < 0 {
		return nil, ErrPartTooLarge
	}
	return b, nil
}

// limitedReader is like io.LimitedReader but reports ErrPartTooLarge via a
// negative remaining count instead of silently truncating.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n < 0 {
		return 0, ErrPartTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		return n, ErrPartTooLarge
	}
	return n, err
}
