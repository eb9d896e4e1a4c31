// Package imagecsv encodes and decodes the image update exchange file.
package imagecsv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"imageupdater/internal/models"
)

const (
	ColProductID      = "Product ID"
	ColProductHandle  = "Product Handle"
	ColCurrentImageID = "Current Image ID"
	ColCollectionName = "Collection Name"
	ColNewImageURL    = "New Image URL"
)

// Header is the column order written by Write.
var Header = []string{ColProductID, ColProductHandle, ColCurrentImageID, ColCollectionName, ColNewImageURL}

var ErrEmpty = errors.New("csv file is empty")

type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("csv line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func Write(w io.Writer, rows []models.ImageUpdateCSVRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{r.ProductID, r.ProductHandle, r.CurrentImageID, r.CollectionName, r.NewImageURL}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func Encode(rows []models.ImageUpdateCSVRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read parses a file that has every header column, in any order. Extra
// columns are ignored. Blank lines are skipped.
func Read(r io.Reader) ([]models.ImageUpdateCSVRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	index := make(map[string]int, len(head))
	for i, name := range head {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range Header {
		if _, ok := index[col]; !ok {
			return nil, &ParseError{Line: 1, Err: fmt.Errorf("missing column %q", col)}
		}
	}

	var rows []models.ImageUpdateCSVRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &ParseError{Line: pe.StartLine, Err: pe.Err}
			}
			return nil, &ParseError{Err: err}
		}
		if blank(record) {
			continue
		}
		get := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		rows = append(rows, models.ImageUpdateCSVRow{
			ProductID:      get(ColProductID),
			ProductHandle:  get(ColProductHandle),
			CurrentImageID: get(ColCurrentImageID),
			CollectionName: get(ColCollectionName),
			NewImageURL:    get(ColNewImageURL),
		})
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
