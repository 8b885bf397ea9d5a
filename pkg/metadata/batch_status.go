package metadata

import "fmt"

// ProductionBatchStatus is the state of a print run ordered from a supplier.
type ProductionBatchStatus string

const (
	BatchStatusOrdered   ProductionBatchStatus = "ordered"
	BatchStatusPrinting  ProductionBatchStatus = "printing"
	BatchStatusCompleted ProductionBatchStatus = "completed"
	BatchStatusPartial   ProductionBatchStatus = "partial"
	BatchStatusReceived  ProductionBatchStatus = "received"
	BatchStatusCancelled ProductionBatchStatus = "cancelled"
)

var batchTransitions = map[ProductionBatchStatus][]ProductionBatchStatus{
	BatchStatusOrdered:   {BatchStatusPrinting, BatchStatusCancelled},
	BatchStatusPrinting:  {BatchStatusCompleted, BatchStatusPartial, BatchStatusReceived, BatchStatusCancelled},
	BatchStatusCompleted: {BatchStatusReceived},
	BatchStatusPartial:   {BatchStatusReceived, BatchStatusCancelled},
	BatchStatusReceived:  {},
	BatchStatusCancelled: {},
}

func NewProductionBatchStatus(value string) (ProductionBatchStatus, error) {
	status := ProductionBatchStatus(value)
	if _, ok := batchTransitions[status]; !ok {
		return "", fmt.Errorf("invalid production batch status: %s", value)
	}
	return status, nil
}

func (s ProductionBatchStatus) String() string {
	return string(s)
}

func (s ProductionBatchStatus) IsTerminal() bool {
	next, ok := batchTransitions[s]
	return ok && len(next) == 0
}

func (s ProductionBatchStatus) CanTransitionTo(to ProductionBatchStatus) bool {
	for _, candidate := range batchTransitions[s] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AcceptsDefects reports whether defective units may be declared when
// entering this status.
func (s ProductionBatchStatus) AcceptsDefects() bool {
	return s == BatchStatusReceived
}
