package models

import (
	"time"

	"github.com/lib/pq"
)

type ChangeKind string

const (
	ChangeKindReplace ChangeKind = "replace"
	ChangeKindAppend  ChangeKind = "append"
)

// ImageChange records one applied mutation so it can be reverted or
// replayed.
type ImageChange struct {
	ID            uint   `gorm:"primaryKey"`
	OperationID   string `gorm:"column:operation_id;index:idx_image_changes_operation"`
	ProductID     string
	Kind          ChangeKind
	OldImageID    string
	OldSrc        string
	OldAlt        *string
	OldPosition   int
	OldVariantIDs pq.StringArray `gorm:"type:text"`
	NewImageID    string
	NewSrc        string
	// RestoredImageID is the image recreated by a rollback of a replace.
	RestoredImageID string
	CreatedAt       time.Time
	RevertedAt      *time.Time
}

func (ImageChange) TableName() string {
	return "image_changes"
}
