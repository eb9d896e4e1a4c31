package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

type OperationStatus string

const (
	OperationStatusPending    OperationStatus = "pending"
	OperationStatusProcessing OperationStatus = "processing"
	OperationStatusCompleted  OperationStatus = "completed"
	OperationStatusFailed     OperationStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s OperationStatus) Terminal() bool {
	return s == OperationStatusCompleted || s == OperationStatusFailed
}

// ImageUpdateOperation is one bulk image update, stored by the backend and
// served to the client as-is.
type ImageUpdateOperation struct {
	OperationID         string          `json:"operationId" gorm:"column:operation_id;primaryKey"`
	Timestamp           time.Time       `json:"timestamp" gorm:"column:created_at;index:idx_image_update_operations_created_at"`
	ShopDomain          string          `json:"shopDomain"`
	UserID              string          `json:"userId"`
	UserName            string          `json:"userName"`
	CollectionID        string          `json:"collectionId"`
	CollectionName      string          `json:"collectionName"`
	ProductIDs          pq.StringArray  `json:"productIds" gorm:"type:text"`
	BeforeSnapshotS3Key string          `json:"beforeSnapshotS3Key" gorm:"column:before_snapshot_key"`
	AfterSnapshotS3Key  string          `json:"afterSnapshotS3Key" gorm:"column:after_snapshot_key"`
	Status              OperationStatus `json:"status"`
	ProductsCount       int             `json:"productsCount"`
	ImagesUpdated       int             `json:"imagesUpdated"`
	ErrorMessage        *string         `json:"errorMessage,omitempty"`
	CSVUploaded         bool            `json:"csvUploaded" gorm:"column:csv_uploaded"`
	RepeatOf            *string         `json:"repeatOf,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	RolledBackAt        *time.Time      `json:"rolled_back_at,omitempty"`
	UpdatedAt           time.Time       `json:"-"`
}

func (ImageUpdateOperation) TableName() string {
	return "image_update_operations"
}

func (o *ImageUpdateOperation) BeforeCreate(tx *gorm.DB) error {
	if o.OperationID == "" {
		o.OperationID = ulid.Make().String()
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}
	return nil
}

// ProcessResult is the advisory answer of the process, upload, rollback and
// repeat endpoints.
type ProcessResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
