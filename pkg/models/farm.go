package models

const FarmStatusActive = "active"

// Farm is owned by the farm service; this repo only reads it.
type Farm struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Status string `json:"status" db:"status"`
}

func (f *Farm) IsActive() bool {
	return f != nil && f.Status == FarmStatusActive
}
