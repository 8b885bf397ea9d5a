package production

import (
	"fmt"
	"strings"

	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"
)

// normalizeDefects validates the declared defects against the target status
// and batch size. It runs before anything is written. A nil result means
// there is nothing to remediate.
func normalizeDefects(info *models.DefectiveInfo, to metadata.ProductionBatchStatus, quantity int) (*models.DefectiveInfo, error) {
	if info == nil {
		return nil, nil
	}
	if info.DefectiveCount < 0 {
		return nil, custom_error.Validation("defectiveCount must not be negative")
	}
	if info.DefectiveCount == 0 && info.IdentifierCount() == 0 {
		return nil, nil
	}
	if !to.AcceptsDefects() {
		return nil, custom_error.Validation(fmt.Sprintf("defective_info is only accepted when moving to %s", metadata.BatchStatusReceived))
	}
	if info.IdentifierCount() != info.DefectiveCount {
		return nil, custom_error.New(
			custom_error.KindValidation,
			custom_error.CodeDefectiveMismatch,
			"number of positions and short codes must equal defectiveCount",
		).WithDetails(map[string]int{
			"defectiveCount": info.DefectiveCount,
			"identifiers":    info.IdentifierCount(),
		})
	}

	normalized := &models.DefectiveInfo{
		DefectiveCount: info.DefectiveCount,
		Positions:      make([]int, 0, len(info.Positions)),
		ShortCodes:     make([]string, 0, len(info.ShortCodes)),
	}

	seenPositions := map[int]bool{}
	for _, position := range info.Positions {
		if position < 1 || position > quantity {
			return nil, custom_error.Validation(fmt.Sprintf("position %d is outside 1..%d", position, quantity))
		}
		if seenPositions[position] {
			return nil, custom_error.Validation(fmt.Sprintf("position %d listed twice", position))
		}
		seenPositions[position] = true
		normalized.Positions = append(normalized.Positions, position)
	}

	seenCodes := map[string]bool{}
	for _, raw := range info.ShortCodes {
		shortCode := strings.ToUpper(strings.TrimSpace(raw))
		if shortCode == "" {
			return nil, custom_error.Validation("short codes must not be empty")
		}
		if seenCodes[shortCode] {
			return nil, custom_error.Validation(fmt.Sprintf("short code %s listed twice", shortCode))
		}
		seenCodes[shortCode] = true
		normalized.ShortCodes = append(normalized.ShortCodes, shortCode)
	}

	return normalized, nil
}

// resolveDefects maps declared identifiers onto the codes of the batch. Every
// identifier must hit a distinct code of this batch.
func resolveDefects(info *models.DefectiveInfo, codes []models.QRCode) ([]int64, error) {
	byPosition := make(map[int]int64, len(codes))
	byShortCode := make(map[string]int64, len(codes))
	for _, code := range codes {
		if code.PrintPosition != nil {
			byPosition[*code.PrintPosition] = code.ID
		}
		byShortCode[code.ShortCode] = code.ID
	}

	mismatch := func(message string) error {
		return custom_error.New(custom_error.KindValidation, custom_error.CodeDefectiveMismatch, message)
	}

	ids := make([]int64, 0, info.DefectiveCount)
	seen := map[int64]bool{}
	add := func(id int64, identifier string) error {
		if seen[id] {
			return mismatch(fmt.Sprintf("%s refers to a code already listed as defective", identifier))
		}
		seen[id] = true
		ids = append(ids, id)
		return nil
	}

	for _, position := range info.Positions {
		id, ok := byPosition[position]
		if !ok {
			return nil, mismatch(fmt.Sprintf("no code at position %d", position))
		}
		if err := add(id, fmt.Sprintf("position %d", position)); err != nil {
			return nil, err
		}
	}
	for _, shortCode := range info.ShortCodes {
		id, ok := byShortCode[shortCode]
		if !ok {
			return nil, mismatch(fmt.Sprintf("short code %s does not belong to this batch", shortCode))
		}
		if err := add(id, "short code "+shortCode); err != nil {
			return nil, err
		}
	}

	return ids, nil
}
