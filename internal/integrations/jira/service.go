package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"farmfleet/internal/core/config"
	"farmfleet/pkg/models"

	"go.uber.org/zap"
)

// DefectReporter opens a service desk request for every batch received with
// defective units so the supplier can replace them.
type DefectReporter struct {
	baseURL       string
	email         string
	token         string
	serviceDeskID string
	requestTypeID string
	client        *http.Client
	log           *zap.Logger
}

func NewDefectReporter(cfg config.JiraConfig, log *zap.Logger) *DefectReporter {
	return &DefectReporter{
		baseURL:       cfg.BaseURL,
		email:         cfg.Email,
		token:         cfg.Token,
		serviceDeskID: cfg.ServiceDeskID,
		requestTypeID: cfg.RequestTypeID,
		client:        &http.Client{Timeout: 10 * time.Second},
		log:           log,
	}
}

func (r *DefectReporter) ReportDefects(ctx context.Context, batch models.ProductionBatch, ledger models.DefectLedger) error {
	issue, err := r.createRequest(ctx, CreateRequest{
		ServiceDeskID: r.serviceDeskID,
		RequestTypeID: r.requestTypeID,
		RequestFieldValues: map[string]interface{}{
			"summary":     fmt.Sprintf("Defective QR labels in batch %s", batch.BatchCode),
			"description": defectDescription(batch, ledger),
		},
	})
	if err != nil {
		return err
	}

	r.log.Info("Opened supplier defect ticket",
		zap.Int64("batch_id", batch.ID),
		zap.String("issue_key", issue.IssueKey),
		zap.Int("defective", ledger.Count),
	)
	return nil
}

func (r *DefectReporter) createRequest(ctx context.Context, payload CreateRequest) (*Issue, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal service desk request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rest/servicedeskapi/request", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(r.email, r.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jira returned %s", resp.Status)
	}

	var issue Issue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, fmt.Errorf("unable to decode jira response: %w", err)
	}
	return &issue, nil
}

func defectDescription(batch models.ProductionBatch, ledger models.DefectLedger) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch %s (supplier %d, %d labels) was received with %d defective labels.\n",
		batch.BatchCode, batch.SupplierID, batch.Quantity, ledger.Count)
	if len(ledger.Positions) > 0 {
		fmt.Fprintf(&b, "Print positions: %s\n", joinInts(ledger.Positions))
	}
	if len(ledger.ShortCodes) > 0 {
		fmt.Fprintf(&b, "Short codes: %s\n", strings.Join(ledger.ShortCodes, ", "))
	}
	fmt.Fprintf(&b, "Recorded at %s.", ledger.RecordedAt.UTC().Format(time.RFC3339))
	return b.String()
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
