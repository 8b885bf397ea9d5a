package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farmfleet/internal/core/config"
	"farmfleet/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ledger = models.DefectLedger{
	Count:      2,
	Positions:  []int{2},
	ShortCodes: []string{"FF-LOYW3V28-AB12"},
	RecordedAt: time.Date(2023, 11, 14, 9, 0, 0, 0, time.UTC),
}

var batch = models.ProductionBatch{ID: 3, BatchCode: "PB-20231114-0003", SupplierID: 8, Quantity: 40}

func TestReportDefectsCreatesServiceDeskRequest(t *testing.T) {
	var received CreateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/servicedeskapi/request", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ops@example.com", user)
		assert.Equal(t, "token", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"issueId":"10001","issueKey":"SUP-12"}`))
	}))
	defer server.Close()

	reporter := NewDefectReporter(config.JiraConfig{
		BaseURL:       server.URL,
		Email:         "ops@example.com",
		Token:         "token",
		ServiceDeskID: "4",
		RequestTypeID: "17",
	}, zap.NewNop())

	require.NoError(t, reporter.ReportDefects(context.Background(), batch, ledger))

	assert.Equal(t, "4", received.ServiceDeskID)
	assert.Equal(t, "17", received.RequestTypeID)
	assert.Equal(t, "Defective QR labels in batch PB-20231114-0003", received.RequestFieldValues["summary"])
	description := received.RequestFieldValues["description"].(string)
	assert.Contains(t, description, "supplier 8")
	assert.Contains(t, description, "Print positions: 2")
	assert.Contains(t, description, "Short codes: FF-LOYW3V28-AB12")
}

func TestReportDefectsFailsOnJiraError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	reporter := NewDefectReporter(config.JiraConfig{BaseURL: server.URL, Token: "t", ServiceDeskID: "4"}, zap.NewNop())

	err := reporter.ReportDefects(context.Background(), batch, ledger)
	assert.ErrorContains(t, err, "400")
}
