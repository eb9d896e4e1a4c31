package imageupdate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"imageupdater/internal/apperr"
	"imageupdater/internal/imagecsv"
	"imageupdater/internal/models"
	"imageupdater/internal/storage"
)

// CSV encodes the operation's plan. Before an upload it is the template with
// empty new image URLs.
func (s *Service) CSV(ctx context.Context, id string) ([]byte, error) {
	op, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows(ctx, op.OperationID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	out := make([]models.ImageUpdateCSVRow, len(rows))
	for i, r := range rows {
		out[i] = r.CSV()
	}
	data, err := imagecsv.Encode(out)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return data, nil
}

// MaxUploadSize is the largest CSV UploadCSV accepts.
func (s *Service) MaxUploadSize() int64 {
	return s.maxUpload
}

// UploadCSV replaces the plan of a pending operation.
func (s *Service) UploadCSV(ctx context.Context, id string, data []byte) (*models.ProcessResult, error) {
	if int64(len(data)) > s.maxUpload {
		return nil, apperr.TooLargeErr("CSV exceeds " + units.HumanSize(float64(s.maxUpload)))
	}
	op, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if op.Status != models.OperationStatusPending {
		return nil, apperr.ConflictErr(fmt.Sprintf("operation is %s; only pending operations accept a CSV", op.Status))
	}

	records, err := imagecsv.Read(bytes.NewReader(data))
	if err != nil {
		var pe *imagecsv.ParseError
		switch {
		case errors.As(err, &pe):
			return nil, apperr.InvalidErr(pe.Error())
		case errors.Is(err, imagecsv.ErrEmpty):
			return nil, apperr.InvalidErr("CSV has no rows")
		}
		return nil, apperr.InvalidErr(err.Error())
	}

	snap, err := s.snapshots.Load(ctx, op.BeforeSnapshotS3Key)
	if err != nil {
		return nil, upstreamErr(err, "operation snapshot not found")
	}
	rows, changes, err := s.buildPlan(op, snap, records)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("operation_id = ?", op.OperationID).Delete(&models.ImageUpdateRow{}).Error; err != nil {
			return err
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return err
		}
		return tx.Model(op).Update("csv_uploaded", true).Error
	})
	if err != nil {
		return nil, apperr.Wrap(fmt.Errorf("failed to store plan: %w", err))
	}

	s.logger.Info("Stored plan for operation %s: %d rows, %d changes", op.OperationID, len(rows), changes)
	return &models.ProcessResult{
		Success: true,
		Message: fmt.Sprintf("CSV uploaded: %d rows, %d image changes", len(rows), changes),
	}, nil
}

// buildPlan checks every record against the operation and its before
// snapshot and returns the rows to store.
func (s *Service) buildPlan(op *models.ImageUpdateOperation, snap *storage.Snapshot, records []models.ImageUpdateCSVRow) ([]models.ImageUpdateRow, int, error) {
	inOperation := make(map[string]bool, len(op.ProductIDs))
	for _, id := range op.ProductIDs {
		inOperation[id] = true
	}

	rows := make([]models.ImageUpdateRow, 0, len(records))
	targeted := map[string]int{}
	changes := 0
	for i, rec := range records {
		n := i + 1
		rec.ProductID = strings.TrimSpace(rec.ProductID)
		rec.CurrentImageID = strings.TrimSpace(rec.CurrentImageID)
		rec.NewImageURL = strings.TrimSpace(rec.NewImageURL)

		if err := s.validate.Struct(rec); err != nil {
			return nil, 0, apperr.InvalidErrf("row %d: %s", n, describe(err))
		}
		if rec.NewImageURL != "" && !httpURL(rec.NewImageURL) {
			return nil, 0, apperr.InvalidErrf("row %d: New Image URL must be an absolute http(s) URL", n)
		}
		if !inOperation[rec.ProductID] {
			return nil, 0, apperr.InvalidErrf("row %d: product %s is not part of this operation", n, rec.ProductID)
		}
		product := snap.Product(rec.ProductID)
		if product == nil {
			return nil, 0, apperr.InvalidErrf("row %d: product %s is missing from the snapshot", n, rec.ProductID)
		}

		row := models.ImageUpdateRow{
			OperationID:    op.OperationID,
			RowNumber:      n,
			ProductID:      rec.ProductID,
			ProductHandle:  product.Handle,
			CurrentImageID: rec.CurrentImageID,
			CollectionName: op.CollectionName,
			NewImageURL:    rec.NewImageURL,
		}
		if rec.CurrentImageID != "" {
			img := product.ImageByID(rec.CurrentImageID)
			if img == nil {
				return nil, 0, apperr.InvalidErrf("row %d: image %s does not belong to product %s", n, rec.CurrentImageID, rec.ProductID)
			}
			if prev, dup := targeted[rec.CurrentImageID]; dup {
				return nil, 0, apperr.InvalidErrf("row %d: image %s is already targeted by row %d", n, rec.CurrentImageID, prev)
			}
			targeted[rec.CurrentImageID] = n
			row.CurrentImageSrc = img.Src
		}
		if wantsChange(row) {
			changes++
		}
		rows = append(rows, row)
	}
	return rows, changes, nil
}

func httpURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}
	fe := ve[0]
	field := map[string]string{
		"ProductID":   imagecsv.ColProductID,
		"NewImageURL": imagecsv.ColNewImageURL,
	}[fe.StructField()]
	if field == "" {
		field = fe.StructField()
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return field + " must be a valid URL"
	}
	return field + " is invalid"
}
