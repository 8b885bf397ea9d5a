package googlesheets

import (
	"farmfleet/pkg/models"
)

type ManifestExport struct {
	BatchID       int64  `json:"batch_id"`
	BatchCode     string `json:"batch_code"`
	SpreadsheetID string `json:"spreadsheet_id"`
	Rows          int    `json:"rows"`
	UpdatedRange  string `json:"updated_range,omitempty"`
}

// ManifestRows lays out one row per code in print order with the columns
// batch_code, print_position, short_code, uuid, status.
func ManifestRows(batch *models.ProductionBatch, records []models.BatchQRCodeRecord) [][]interface{} {
	rows := make([][]interface{}, 0, len(records))
	for _, record := range records {
		var position interface{} = ""
		if record.PrintPosition != nil {
			position = *record.PrintPosition
		}
		rows = append(rows, []interface{}{
			batch.BatchCode,
			position,
			record.ShortCode,
			record.UUID,
			string(record.Status),
		})
	}
	return rows
}
