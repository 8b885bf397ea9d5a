package models

import (
	"time"

	"farmfleet/pkg/metadata"
)

const (
	MinBatchQuantity = 1
	MaxBatchQuantity = 100

	MetadataDefects = "defects"
)

type ProductionBatch struct {
	ID         int64                          `json:"id" db:"id"`
	BatchCode  string                         `json:"batch_code" db:"batch_code"`
	Quantity   int                            `json:"quantity" db:"quantity"`
	SupplierID int64                          `json:"supplier_id" db:"supplier_id"`
	Status     metadata.ProductionBatchStatus `json:"status" db:"status"`
	Notes      *string                        `json:"notes" db:"notes"`
	Metadata   Metadata                       `json:"metadata" db:"metadata"`
	CreatedAt  time.Time                      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time                      `json:"updated_at" db:"updated_at"`
	QRCodes    []QRCode                       `json:"qr_codes,omitempty" db:"-"`
}

func (b *ProductionBatch) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   b.ID,
		ResourceType: "production_batch",
	}
}

type CreateBatchRequest struct {
	Quantity   int     `json:"quantity" binding:"required"`
	SupplierID int64   `json:"supplier_id" binding:"required"`
	Notes      *string `json:"notes"`
}

type DefectiveInfo struct {
	DefectiveCount int      `json:"defectiveCount"`
	Positions      []int    `json:"positions"`
	ShortCodes     []string `json:"short_codes"`
}

func (d *DefectiveInfo) IdentifierCount() int {
	return len(d.Positions) + len(d.ShortCodes)
}

type UpdateBatchStatusRequest struct {
	Status        string         `json:"status" binding:"required"`
	Notes         *string        `json:"notes"`
	DefectiveInfo *DefectiveInfo `json:"defective_info"`
}

// DefectLedger is stored under the "defects" key of the batch metadata.
type DefectLedger struct {
	Count      int       `json:"count"`
	Positions  []int     `json:"positions"`
	ShortCodes []string  `json:"short_codes"`
	QRIDs      []int64   `json:"qr_ids"`
	RecordedAt time.Time `json:"recorded_at"`
	RecordedBy int64     `json:"recorded_by,omitempty"`
}

type BatchFilter struct {
	Status     *metadata.ProductionBatchStatus
	SupplierID *int64
	Page       int
	Limit      int
}

type ProductionBatchList struct {
	Data       []ProductionBatch `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// QRAllocation ties a code to the print run that produced it.
type QRAllocation struct {
	ID          int64     `json:"id" db:"id"`
	QRCodeID    int64     `json:"qr_code_id" db:"qr_code_id"`
	BatchID     int64     `json:"batch_id" db:"batch_id"`
	AllocatedAt time.Time `json:"allocated_at" db:"allocated_at"`
	Notes       *string   `json:"notes" db:"notes"`
}
