package imageupdate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"imageupdater/internal/apperr"
	"imageupdater/internal/models"
	"imageupdater/internal/services/shopify"
	"imageupdater/internal/storage"
)

// Rollback reverts every change of a completed operation, newest first.
// Replaced images are recreated from the before snapshot with their variant
// ids; appended images are removed. A partial failure can be retried: changes
// already reverted are not touched again.
func (s *Service) Rollback(ctx context.Context, id string) (*models.ProcessResult, error) {
	op, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if op.Status != models.OperationStatusCompleted {
		return nil, apperr.ConflictErr(fmt.Sprintf("operation is %s; only completed operations can be rolled back", op.Status))
	}
	if op.RolledBackAt != nil {
		return nil, apperr.ConflictErr("operation was already rolled back")
	}

	var changes []models.ImageChange
	err = s.db.WithContext(ctx).
		Where("operation_id = ? AND reverted_at IS NULL", op.OperationID).
		Order("id DESC").
		Find(&changes).Error
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	before, err := s.snapshots.Load(ctx, op.BeforeSnapshotS3Key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Wrap(err)
	}

	for i := range changes {
		c := &changes[i]
		restored, err := s.revert(ctx, before, c)
		if err != nil {
			s.logger.Error("Rollback of %s stopped at change %d: %v", op.OperationID, c.ID, err)
			return nil, upstreamErr(fmt.Errorf("failed to revert %s image %s: %w", c.Kind, c.NewImageID, err), "product not found")
		}
		err = s.db.WithContext(ctx).Model(c).Updates(map[string]interface{}{
			"reverted_at":       time.Now().UTC(),
			"restored_image_id": restored,
		}).Error
		if err != nil {
			return nil, apperr.Wrap(err)
		}
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(op).Update("rolled_back_at", now).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	s.logger.Info("Rolled back operation %s (%d changes)", op.OperationID, len(changes))
	return &models.ProcessResult{
		Success: true,
		Message: fmt.Sprintf("Rolled back %d image changes", len(changes)),
	}, nil
}

// revert undoes one change and returns the id of the recreated image, if
// any.
func (s *Service) revert(ctx context.Context, before *storage.Snapshot, c *models.ImageChange) (string, error) {
	restored := ""
	if c.Kind == models.ChangeKindReplace {
		src, alt, position, variants := c.OldSrc, c.OldAlt, c.OldPosition, []string(c.OldVariantIDs)
		if before != nil {
			if p := before.Product(c.ProductID); p != nil {
				if img := p.ImageByID(c.OldImageID); img != nil {
					src, alt, position = img.Src, img.Alt, img.Position
					variants = p.VariantIDsForImage(img.ID)
				}
			}
		}
		img, err := s.catalog.CreateImage(ctx, c.ProductID, src, position, alt, variants)
		if err != nil {
			return "", err
		}
		restored = img.ID
	}
	return restored, ignoreNotFound(s.catalog.DeleteImage(ctx, c.ProductID, c.NewImageID))
}

func ignoreNotFound(err error) error {
	var apiErr *shopify.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// Repeat creates a new operation for the same collection and products,
// carries the source plan over and processes it. Rows whose image was
// replaced or restored by the source operation follow that image; rows whose
// image no longer exists are dropped.
func (s *Service) Repeat(ctx context.Context, id string) (*models.ImageUpdateOperation, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !src.Status.Terminal() {
		return nil, apperr.ConflictErr(fmt.Sprintf("operation is %s; only completed or failed operations can be repeated", src.Status))
	}
	if !src.CSVUploaded {
		return nil, apperr.ConflictErr("operation has no uploaded plan to repeat")
	}

	op, err := s.Create(ctx, CreateRequest{
		CollectionID: src.CollectionID,
		ProductIDs:   src.ProductIDs,
		UserID:       src.UserID,
		UserName:     src.UserName,
	})
	if err != nil {
		return nil, err
	}

	plan, err := s.rows(ctx, src.OperationID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	var changes []models.ImageChange
	if err := s.db.WithContext(ctx).Where("operation_id = ? AND kind = ?", src.OperationID, models.ChangeKindReplace).Find(&changes).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	// where each replaced image lives now: the replacement, or the copy a
	// rollback recreated
	replacedBy := make(map[string]string, len(changes))
	for _, c := range changes {
		if c.RevertedAt == nil {
			replacedBy[c.OldImageID] = c.NewImageID
		} else if c.RestoredImageID != "" {
			replacedBy[c.OldImageID] = c.RestoredImageID
		}
	}
	snap, err := s.snapshots.Load(ctx, op.BeforeSnapshotS3Key)
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	rows := make([]models.ImageUpdateRow, 0, len(plan))
	dropped := 0
	for _, r := range plan {
		product := snap.Product(r.ProductID)
		if product == nil {
			dropped++
			continue
		}
		r.ID = 0
		r.OperationID = op.OperationID
		r.RowNumber = len(rows) + 1
		r.CurrentImageSrc = ""
		if r.CurrentImageID != "" {
			img := product.ImageByID(r.CurrentImageID)
			if img == nil {
				if next, ok := replacedBy[r.CurrentImageID]; ok {
					img = product.ImageByID(next)
				}
			}
			if img == nil {
				dropped++
				continue
			}
			r.CurrentImageID = img.ID
			r.CurrentImageSrc = img.Src
		}
		rows = append(rows, r)
	}
	if dropped > 0 {
		s.logger.Warn("Repeat of %s dropped %d rows whose image no longer exists", src.OperationID, dropped)
	}

	repeatOf := src.OperationID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("operation_id = ?", op.OperationID).Delete(&models.ImageUpdateRow{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return err
			}
		}
		return tx.Model(op).Updates(map[string]interface{}{"csv_uploaded": true, "repeat_of": repeatOf}).Error
	})
	if err != nil {
		return nil, apperr.Wrap(fmt.Errorf("failed to copy plan: %w", err))
	}

	if _, err := s.Process(ctx, op.OperationID); err != nil {
		return nil, err
	}
	return s.Get(ctx, op.OperationID)
}
