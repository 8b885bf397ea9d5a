package models

import (
	"time"

	"farmfleet/pkg/metadata"
)

// BatchQRCodeRecord is one code of a production batch joined with its farm
// and print-run allocation.
type BatchQRCodeRecord struct {
	ID              int64               `json:"id" db:"id"`
	UUID            string              `json:"uuid" db:"uuid"`
	ShortCode       string              `json:"short_code" db:"short_code"`
	Status          metadata.QRStatus   `json:"status" db:"status"`
	PrintPosition   *int                `json:"print_position" db:"print_position"`
	FarmID          *int64              `json:"farm_id" db:"farm_id"`
	FarmName        *string             `json:"farm_name" db:"farm_name"`
	AssetType       *metadata.AssetType `json:"asset_type" db:"asset_type"`
	AssetID         *int64              `json:"asset_id" db:"asset_id"`
	BoundAt         *time.Time          `json:"bound_at" db:"bound_at"`
	AllocatedAt     *time.Time          `json:"allocated_at" db:"allocated_at"`
	AllocationNotes *string             `json:"allocation_notes" db:"allocation_notes"`
	Metadata        Metadata            `json:"metadata" db:"metadata"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
}

type BatchListingQuery struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

type BatchQRCodeListing struct {
	Batch      *ProductionBatch    `json:"batch"`
	Data       []BatchQRCodeRecord `json:"data"`
	Pagination Pagination          `json:"pagination"`
	Sort       string              `json:"sort"`
	Order      string              `json:"order"`
}
