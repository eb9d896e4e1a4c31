package imageupdate

import (
	"context"
	"fmt"
	"time"

	"imageupdater/internal/apperr"
	"imageupdater/internal/models"
	"imageupdater/internal/storage"
)

// wantsChange reports whether applying row mutates the store. Rows left as
// downloaded, or pointing at the image they already show, are skipped.
func wantsChange(row models.ImageUpdateRow) bool {
	return row.NewImageURL != "" && row.NewImageURL != row.CurrentImageSrc
}

// Process moves a pending operation with an uploaded plan to processing and
// dispatches it.
func (s *Service) Process(ctx context.Context, id string) (*models.ProcessResult, error) {
	op, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if op.Status != models.OperationStatusPending {
		return nil, apperr.ConflictErr(fmt.Sprintf("operation is %s; only pending operations can be processed", op.Status))
	}
	if !op.CSVUploaded {
		return nil, apperr.ConflictErr("upload a CSV before processing")
	}

	// conditional so two concurrent requests cannot both start it
	res := s.db.WithContext(ctx).Model(&models.ImageUpdateOperation{}).
		Where("operation_id = ? AND status = ?", op.OperationID, models.OperationStatusPending).
		Update("status", models.OperationStatusProcessing)
	if res.Error != nil {
		return nil, apperr.Wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ConflictErr("operation is already being processed")
	}
	s.metrics.OperationReached(string(models.OperationStatusProcessing))

	if err := s.dispatcher.Dispatch(ctx, op.OperationID); err != nil {
		s.logger.Error("Failed to dispatch operation %s: %v", op.OperationID, err)
		op.Status = models.OperationStatusProcessing
		s.fail(ctx, op, 0, fmt.Errorf("failed to dispatch: %w", err))
		return nil, apperr.Wrap(err)
	}
	return &models.ProcessResult{Success: true, Message: "Processing started"}, nil
}

// Apply performs the plan of a processing operation. Operations in any other
// state are ignored so redelivered events are harmless.
func (s *Service) Apply(ctx context.Context, id string) error {
	op, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if op.Status != models.OperationStatusProcessing {
		s.logger.Warn("Skipping operation %s in state %s", op.OperationID, op.Status)
		return nil
	}

	rows, err := s.rows(ctx, op.OperationID)
	if err != nil {
		s.fail(ctx, op, 0, err)
		return err
	}

	s.logger.Info("Applying operation %s (%d rows)", op.OperationID, len(rows))
	live := map[string]*models.Product{}
	updated := 0
	for _, row := range rows {
		if !wantsChange(row) {
			continue
		}
		if err := s.applyRow(ctx, op, row, live); err != nil {
			s.fail(ctx, op, updated, fmt.Errorf("row %d (%s): %w", row.RowNumber, row.ProductID, err))
			return err
		}
		updated++
	}

	now := time.Now().UTC()
	fields := map[string]interface{}{
		"images_updated": updated,
		"completed_at":   now,
		"error_message":  nil,
	}
	if key, err := s.afterSnapshot(ctx, op); err != nil {
		s.logger.Warn("Failed to store after snapshot of %s: %v", op.OperationID, err)
	} else {
		fields["after_snapshot_key"] = key
	}
	if err := s.setStatus(ctx, op, models.OperationStatusCompleted, fields); err != nil {
		return err
	}
	s.metrics.ImagesUpdated(updated)
	s.logger.Info("Operation %s completed: %d images updated", op.OperationID, updated)
	return nil
}

// applyRow replaces the row's image or appends a new one. live caches the
// current product state; an entry is dropped after each mutation.
func (s *Service) applyRow(ctx context.Context, op *models.ImageUpdateOperation, row models.ImageUpdateRow, live map[string]*models.Product) error {
	product, ok := live[row.ProductID]
	if !ok {
		p, err := s.catalog.GetProduct(ctx, row.ProductID)
		if err != nil {
			return err
		}
		product = p
	}
	delete(live, row.ProductID)

	change := models.ImageChange{
		OperationID: op.OperationID,
		ProductID:   row.ProductID,
		NewSrc:      row.NewImageURL,
		CreatedAt:   time.Now().UTC(),
	}

	if row.CurrentImageID == "" {
		created, err := s.catalog.CreateImage(ctx, row.ProductID, row.NewImageURL, len(product.Images)+1, nil, nil)
		if err != nil {
			return err
		}
		change.Kind = models.ChangeKindAppend
		change.NewImageID = created.ID
		return s.db.WithContext(ctx).Create(&change).Error
	}

	old := product.ImageByID(row.CurrentImageID)
	if old == nil {
		return fmt.Errorf("image %s no longer exists", row.CurrentImageID)
	}
	variants := product.VariantIDsForImage(old.ID)
	created, err := s.catalog.CreateImage(ctx, row.ProductID, row.NewImageURL, old.Position, old.Alt, variants)
	if err != nil {
		return err
	}
	change.Kind = models.ChangeKindReplace
	change.OldImageID = old.ID
	change.OldSrc = old.Src
	change.OldAlt = old.Alt
	change.OldPosition = old.Position
	change.OldVariantIDs = variants
	change.NewImageID = created.ID
	// recorded before the delete so a failure leaves a revertible trail
	if err := s.db.WithContext(ctx).Create(&change).Error; err != nil {
		return err
	}
	return s.catalog.DeleteImage(ctx, row.ProductID, old.ID)
}

func (s *Service) afterSnapshot(ctx context.Context, op *models.ImageUpdateOperation) (string, error) {
	products := make([]models.Product, 0, len(op.ProductIDs))
	for _, id := range op.ProductIDs {
		p, err := s.catalog.GetProduct(ctx, id)
		if err != nil {
			return "", err
		}
		products = append(products, *p)
	}
	return s.snapshots.Save(ctx, &storage.Snapshot{
		OperationID:  op.OperationID,
		Kind:         storage.SnapshotAfter,
		CollectionID: op.CollectionID,
		Products:     products,
	})
}

// fail marks op failed. The store may already be partly changed; the
// recorded changes stay so the operation can be inspected.
func (s *Service) fail(ctx context.Context, op *models.ImageUpdateOperation, updated int, cause error) {
	msg := cause.Error()
	s.logger.Error("Operation %s failed: %s", op.OperationID, msg)
	fields := map[string]interface{}{
		"images_updated": updated,
		"error_message":  msg,
		"completed_at":   time.Now().UTC(),
	}
	if updated > 0 {
		if key, err := s.afterSnapshot(ctx, op); err == nil {
			fields["after_snapshot_key"] = key
		}
	}
	if err := s.setStatus(context.WithoutCancel(ctx), op, models.OperationStatusFailed, fields); err != nil {
		s.logger.Error("Failed to mark operation %s failed: %v", op.OperationID, err)
	}
	s.metrics.ImagesUpdated(updated)
}
