package models

type AllocateRequest struct {
	QRIDs  []int64 `json:"qr_ids" binding:"required,min=1"`
	FarmID int64   `json:"farm_id" binding:"required"`
}

type AllocationFailure struct {
	QRID   int64  `json:"qr_id"`
	Reason string `json:"reason"`
}

// AllocationReport partitions a best-effort bulk operation. Callers must
// always inspect Failed.
type AllocationReport struct {
	Successful []int64             `json:"successful"`
	Failed     []AllocationFailure `json:"failed"`
}

func NewAllocationReport() *AllocationReport {
	return &AllocationReport{
		Successful: []int64{},
		Failed:     []AllocationFailure{},
	}
}

func (r *AllocationReport) Succeed(id int64) {
	r.Successful = append(r.Successful, id)
}

func (r *AllocationReport) Fail(id int64, reason string) {
	r.Failed = append(r.Failed, AllocationFailure{QRID: id, Reason: reason})
}
