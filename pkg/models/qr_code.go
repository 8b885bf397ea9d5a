package models

import (
	"time"

	"farmfleet/pkg/metadata"
)

const (
	MetadataDefective     = "defective"
	MetadataDefectBatchID = "defect_batch_id"
)

type QRCode struct {
	ID            int64               `json:"id" db:"id"`
	UUID          string              `json:"uuid" db:"uuid"`
	ShortCode     string              `json:"short_code" db:"short_code"`
	Status        metadata.QRStatus   `json:"status" db:"status"`
	FarmID        *int64              `json:"farm_id" db:"farm_id"`
	AssetType     *metadata.AssetType `json:"asset_type" db:"asset_type"`
	AssetID       *int64              `json:"asset_id" db:"asset_id"`
	BatchID       *int64              `json:"batch_id" db:"batch_id"`
	PrintPosition *int                `json:"print_position" db:"print_position"`
	BoundAt       *time.Time          `json:"bound_at" db:"bound_at"`
	Metadata      Metadata            `json:"metadata" db:"metadata"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// IsDefective reports whether batch remediation flagged this code.
func (q *QRCode) IsDefective() bool {
	flag, ok := q.Metadata[MetadataDefective].(bool)
	return ok && flag
}

func (q *QRCode) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   q.ID,
		ResourceType: "qr_code",
	}
}

type GenerateQRCodeRequest struct {
	FarmID    *int64   `json:"farm_id"`
	AssetType *string  `json:"asset_type"`
	AssetID   *int64   `json:"asset_id"`
	Metadata  Metadata `json:"metadata"`
}

type BindRequest struct {
	AssetType string `json:"asset_type" binding:"required"`
	AssetID   int64  `json:"asset_id" binding:"required"`
	FarmID    *int64 `json:"farm_id"`
}

type BulkStatusRequest struct {
	QRIDs  []int64 `json:"qr_ids" binding:"required,min=1"`
	Status string  `json:"status" binding:"required"`
}

type QRCodeFilter struct {
	FarmID  *int64
	Status  *metadata.QRStatus
	BatchID *int64
	Page    int
	Limit   int
}

type QRCodeStats struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	Defective int            `json:"defective"`
}

type QRCodeList struct {
	Data       []QRCode   `json:"data"`
	Pagination Pagination `json:"pagination"`
}
