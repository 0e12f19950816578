package torque

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/torquehq/torque/stream"
)

// UploadFile is one file field extracted from a multipart request body, per
// the data model: field name, filename, content-type, size, and backing
// (memory or temp-file path). Small parts stay in memory; parts past
// Config.Upload.MaxBufferedBytes spool to a temp file that Close unlinks.
type UploadFile struct {
	FieldName   string
	FileName    string
	ContentType string
	Size        int64

	part *stream.Part
}

// Spooled reports whether the file is backed by a temp file rather than an
// in-memory buffer.
func (u *UploadFile) Spooled() bool { return u.part.Spooled() }

// TempPath returns the spooled temp file's path, or "" for a memory-backed
// file.
func (u *UploadFile) TempPath() string { return u.part.TempPath() }

// Open returns a reader over the file's content regardless of backing.
// Callers must Close the returned reader.
func (u *UploadFile) Open() (io.ReadCloser, error) {
	if u.Spooled() {
		return u.part.Open()
	}
	return io.NopCloser(bytes.NewReader(u.part.Data())), nil
}

// Close releases the file's backing storage: spooled files unlink their
// temp file, memory-backed files are left for GC. Per the data model,
// callers must Close every UploadFile once done with it.
func (u *UploadFile) Close() error {
	return u.part.Remove()
}

// UploadConstraint bounds what ParseUpload accepts for one file field: an
// allow-list of MIME types matched against the part's sniffed content (not
// whatever Content-Type the client declared), and a max size overriding
// Config.Upload.MaxPartBytes when smaller.
type UploadConstraint struct {
	AllowedMIMETypes []string
	MaxSize          int64
}

func (c UploadConstraint) allows(mimeType string) bool {
	if len(c.AllowedMIMETypes) == 0 {
		return true
	}
	for _, m := range c.AllowedMIMETypes {
		if strings.EqualFold(m, mimeType) {
			return true
		}
	}
	return false
}

// Errors returned by Request.ParseUpload.
var (
	ErrContentTypeMismatch   = fmt.Errorf("torque: declared content-type does not match sniffed content")
	ErrContentTypeNotAllowed = fmt.Errorf("torque: content-type not allowed for this field")
	ErrVirusScanFailed       = fmt.Errorf("torque: upload failed virus scan")
)

// ParseUpload incrementally parses the request body as multipart/form-data
// per cfg (Config.Upload), applying the per-field constraints keyed by
// field name. Non-file fields are returned in values; file fields in files,
// keyed by field name, in submission order. On any error every UploadFile
// already produced is closed before returning.
//
// Each file field with a registered constraint is checked for max size,
// then for whether its sniffed content type is in the allow-list, then for
// whether the client's declared Content-Type (if any) matches what was
// sniffed. If cfg.VirusScanCmd is set, every spooled file is run through it
// before being handed back.
func (r *Request) ParseUpload(cfg UploadConfig, constraints map[string]UploadConstraint) (values map[string]string, files map[string][]*UploadFile, err error) {
	ct := r.Header.Get("Content-Type")
	mr, err := stream.NewMultipartReader(r.Body, ct, cfg.MaxBufferedBytes, cfg.MaxPartBytes, cfg.SpoolDir)
	if err != nil {
		return nil, nil, err
	}

	values = map[string]string{}
	files = map[string][]*UploadFile{}

	abort := func(err error) (map[string]string, map[string][]*UploadFile, error) {
		for _, fs := range files {
			for _, f := range fs {
				f.Close()
			}
		}
		return nil, nil, err
	}

	for {
		part, perr := mr.Next()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			return abort(perr)
		}

		if !part.IsFile() {
			values[part.FieldName] = part.Value
			continue
		}

		uf := &UploadFile{
			FieldName:   part.FieldName,
			FileName:    part.FileName,
			ContentType: part.Header.Get("Content-Type"),
			Size:        part.Size(),
			part:        part,
		}

		if c, ok := constraints[part.FieldName]; ok {
			if c.MaxSize > 0 && uf.Size > c.MaxSize {
				uf.Close()
				return abort(fmt.Errorf("%w: field %q exceeds %d bytes", stream.ErrPartTooLarge, part.FieldName, c.MaxSize))
			}
			if !c.allows(part.SniffedContentType) {
				uf.Close()
				return abort(fmt.Errorf("%w: field %q sniffed as %s", ErrContentTypeNotAllowed, part.FieldName, part.SniffedContentType))
			}
			if uf.ContentType != "" && !strings.EqualFold(uf.ContentType, part.SniffedContentType) {
				uf.Close()
				return abort(fmt.Errorf("%w: field %q declared %s, sniffed %s", ErrContentTypeMismatch, part.FieldName, uf.ContentType, part.SniffedContentType))
			}
		}

		if cfg.VirusScanCmd != "" && uf.Spooled() {
			if err := runVirusScan(cfg.VirusScanCmd, uf.TempPath()); err != nil {
				uf.Close()
				return abort(err)
			}
		}

		files[part.FieldName] = append(files[part.FieldName], uf)
	}

	return values, files, nil
}

// runVirusScan shells out to cmd with path appended as its final argument;
// a non-zero exit is treated as a positive detection.
func runVirusScan(cmd, path string) error {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return nil
	}
	c := exec.Command(fields[0], append(fields[1:], path)...)
	if err := c.Run(); err != nil {
		return fmt.Errorf("%w: %v", ErrVirusScanFailed, err)
	}
	return nil
}
