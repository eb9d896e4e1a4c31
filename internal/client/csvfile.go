package client

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// CSVFile is a file that passed the CSV type check. Build it with NewCSVFile
// or OpenCSVFile.
type CSVFile struct {
	name string
	data []byte
}

// NewCSVFile accepts a .csv name whose content is detected as plain text.
func NewCSVFile(name string, data []byte) (*CSVFile, error) {
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return nil, fmt.Errorf("%w: %s has no .csv extension", ErrNotCSV, name)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNotCSV, name)
	}
	mt := mimetype.Detect(data)
	if !isText(mt) {
		return nil, fmt.Errorf("%w: %s looks like %s", ErrNotCSV, name, mt.String())
	}
	return &CSVFile{name: filepath.Base(name), data: data}, nil
}

func OpenCSVFile(path string) (*CSVFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewCSVFile(path, data)
}

func (f *CSVFile) Name() string { return f.name }
func (f *CSVFile) Data() []byte { return f.data }

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") || m.Is("text/csv") {
			return true
		}
	}
	return false
}

func (f *CSVFile) multipart() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="csv"; filename=%q`, f.name))
	h.Set("Content-Type", "text/csv")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
