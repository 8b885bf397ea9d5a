package models

import (
	"time"

	"farmfleet/pkg/metadata"
)

const (
	MetadataStatusHistory    = "status_history"
	MetadataLastStatusChange = "last_status_change"
	MetadataFulfillment      = "fulfillment"
	MetadataNotes            = "notes"
)

type DeliveryBatch struct {
	ID                int64                   `json:"id" db:"id"`
	DeliveryCode      string                  `json:"delivery_code" db:"delivery_code"`
	FarmID            int64                   `json:"farm_id" db:"farm_id"`
	RequestedQuantity int                     `json:"requested_quantity" db:"requested_quantity"`
	CurrentStatus     metadata.DeliveryStatus `json:"current_status" db:"current_status"`
	Metadata          Metadata                `json:"metadata" db:"metadata"`
	CreatedBy         *int64                  `json:"created_by" db:"created_by"`
	CreatedAt         time.Time               `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at" db:"updated_at"`
}

func (d *DeliveryBatch) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   d.ID,
		ResourceType: "delivery_batch",
	}
}

type CreateDeliveryRequest struct {
	FarmID            int64    `json:"farm_id" binding:"required"`
	RequestedQuantity int      `json:"requested_quantity" binding:"required"`
	Metadata          Metadata `json:"metadata"`
}

type UpdateDeliveryStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

// DeliveryProcedureResult is the jsonb returned by create_delivery_batch.
type DeliveryProcedureResult struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Data      *struct {
		ID           int64  `json:"id"`
		DeliveryCode string `json:"delivery_code"`
	} `json:"data"`
}

type StatusChange struct {
	From  metadata.DeliveryStatus `json:"from"`
	To    metadata.DeliveryStatus `json:"to"`
	By    int64                   `json:"by,omitempty"`
	At    time.Time               `json:"at"`
	Notes *string                 `json:"notes,omitempty"`
}

type FulfillmentRecord struct {
	QRIDs       []int64             `json:"qr_ids"`
	Allocated   int                 `json:"allocated"`
	Failed      []AllocationFailure `json:"failed"`
	AllocatedAt time.Time           `json:"allocated_at"`
}

type FulfillmentSummary struct {
	DeliveryID         int64                   `json:"delivery_id"`
	FarmID             int64                   `json:"farm_id"`
	Status             metadata.DeliveryStatus `json:"status"`
	RequestedQuantity  int                     `json:"requested_quantity"`
	FulfilledQuantity  int                     `json:"fulfilled_quantity"`
	FarmAllocatedCount int                     `json:"farm_allocated_count"`
	QRIDs              []int64                 `json:"qr_ids"`
}

type DeliveryFilter struct {
	FarmID *int64
	Status *metadata.DeliveryStatus
	Page   int
	Limit  int
}

type DeliveryBatchList struct {
	Data       []DeliveryBatch `json:"data"`
	Pagination Pagination      `json:"pagination"`
}

type DeliveryStatusUpdate struct {
	Delivery    *DeliveryBatch    `json:"delivery"`
	Fulfillment *AllocationReport `json:"fulfillment,omitempty"`
}
