package models

// ImageUpdateCSVRow is one line of the exchange CSV. An empty NewImageURL
// leaves the image untouched; an empty CurrentImageID appends.
type ImageUpdateCSVRow struct {
	ProductID      string `json:"product_id" validate:"required"`
	ProductHandle  string `json:"product_handle"`
	CurrentImageID string `json:"current_image_id"`
	CollectionName string `json:"collection_name"`
	NewImageURL    string `json:"new_image_url" validate:"omitempty,url"`
}

// ImageUpdateRow is the stored plan line of an operation.
type ImageUpdateRow struct {
	ID              uint   `gorm:"primaryKey"`
	OperationID     string `gorm:"column:operation_id;index:idx_image_update_rows_operation"`
	RowNumber       int    `gorm:"column:line_no"`
	ProductID       string
	ProductHandle   string
	CurrentImageID  string
	CurrentImageSrc string
	CollectionName  string
	NewImageURL     string
}

func (ImageUpdateRow) TableName() string {
	return "image_update_rows"
}

func (r ImageUpdateRow) CSV() ImageUpdateCSVRow {
	return ImageUpdateCSVRow{
		ProductID:      r.ProductID,
		ProductHandle:  r.ProductHandle,
		CurrentImageID: r.CurrentImageID,
		CollectionName: r.CollectionName,
		NewImageURL:    r.NewImageURL,
	}
}
