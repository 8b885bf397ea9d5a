package googlesheets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"farmfleet/internal/core/config"
	"farmfleet/internal/repository"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockAppender struct {
	mock.Mock
}

func (m *MockAppender) Append(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) (string, error) {
	args := m.Called(ctx, spreadsheetID, rng, rows)
	return args.String(0), args.Error(1)
}

type stubCodes struct{}

func (stubCodes) AllBatchCodes(_ context.Context, _ repository.DatabaseContext, batchID int64) (*models.ProductionBatch, []models.BatchQRCodeRecord, error) {
	one, two := 1, 2
	return &models.ProductionBatch{ID: batchID, BatchCode: "PB-20231114-0001"},
		[]models.BatchQRCodeRecord{
			{ShortCode: "FF-A", UUID: "u-1", Status: metadata.QRStatusAvailable, PrintPosition: &one},
			{ShortCode: "FF-B", UUID: "u-2", Status: metadata.QRStatusAllocated, PrintPosition: &two},
		}, nil
}

var sheetsConfig = config.GoogleSheetsConfig{ManifestSpreadsheetID: "sheet-1", ManifestRange: "Manifest!A1"}

func TestExportBatchAppendsOneRowPerCode(t *testing.T) {
	appender := new(MockAppender)
	exporter := NewManifestExporter(stubCodes{}, appender, sheetsConfig, zap.NewNop())

	expected := [][]interface{}{
		{"PB-20231114-0001", 1, "FF-A", "u-1", "available"},
		{"PB-20231114-0001", 2, "FF-B", "u-2", "allocated"},
	}
	appender.On("Append", mock.Anything, "sheet-1", "Manifest!A1", expected).Return("Manifest!A10:E11", nil)

	export, err := exporter.ExportBatch(context.Background(), repository.DatabaseContext{}, 1)

	require.NoError(t, err)
	assert.Equal(t, 2, export.Rows)
	assert.Equal(t, "Manifest!A10:E11", export.UpdatedRange)
	appender.AssertExpectations(t)
}

func TestExportBatchSurfacesAppendFailure(t *testing.T) {
	appender := new(MockAppender)
	exporter := NewManifestExporter(stubCodes{}, appender, sheetsConfig, zap.NewNop())
	appender.On("Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	_, err := exporter.ExportBatch(context.Background(), repository.DatabaseContext{}, 1)

	assert.ErrorContains(t, err, "quota exceeded")
}

func TestExportManifestDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/qr-codes/batches/1/manifest", nil)
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	NewManifestHandler(nil).ExportManifest(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExportManifestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	appender := new(MockAppender)
	appender.On("Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("Manifest!A2:E3", nil)
	handler := NewManifestHandler(NewManifestExporter(stubCodes{}, appender, sheetsConfig, zap.NewNop()))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/qr-codes/batches/1/manifest", nil)
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	handler.ExportManifest(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rows":2`)
}
