package production

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) CreateBatch(ctx context.Context, dbc repository.DatabaseContext, req models.CreateBatchRequest, actor int64) (*models.ProductionBatch, error) {
	args := m.Called(ctx, dbc, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductionBatch), args.Error(1)
}

func (m *MockBatchService) GetBatchWithCodes(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.ProductionBatch, error) {
	args := m.Called(ctx, dbc, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductionBatch), args.Error(1)
}

func (m *MockBatchService) ListBatches(ctx context.Context, dbc repository.DatabaseContext, filter models.BatchFilter) (*models.ProductionBatchList, error) {
	args := m.Called(ctx, dbc, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductionBatchList), args.Error(1)
}

func (m *MockBatchService) UpdateStatus(ctx context.Context, dbc repository.DatabaseContext, id int64, req models.UpdateBatchStatusRequest, actor int64) (*models.ProductionBatch, error) {
	args := m.Called(ctx, dbc, id, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductionBatch), args.Error(1)
}

func setupTestContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	c.Request = httptest.NewRequest(method, target, &payload)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("userID", "2")
	return c, w
}

func TestCreateBatchHandler(t *testing.T) {
	tests := []struct {
		name           string
		payload        interface{}
		setupMock      func(s *MockBatchService)
		expectedStatus int
	}{
		{
			name:    "created",
			payload: models.CreateBatchRequest{Quantity: 3, SupplierID: 1},
			setupMock: func(s *MockBatchService) {
				s.On("CreateBatch", mock.Anything, mock.Anything, models.CreateBatchRequest{Quantity: 3, SupplierID: 1}, int64(2)).
					Return(&models.ProductionBatch{ID: 1, Quantity: 3, Status: metadata.BatchStatusOrdered}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing supplier",
			payload:        map[string]int{"quantity": 3},
			setupMock:      func(s *MockBatchService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:    "unknown supplier",
			payload: models.CreateBatchRequest{Quantity: 3, SupplierID: 99},
			setupMock: func(s *MockBatchService) {
				s.On("CreateBatch", mock.Anything, mock.Anything, mock.Anything, int64(2)).
					Return(nil, custom_error.New(custom_error.KindDependency, custom_error.CodeDependency, "supplier does not exist"))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockBatchService)
			tt.setupMock(service)
			handler := NewHandler(service)

			c, w := setupTestContext(http.MethodPost, "/qr-codes/batches", tt.payload)
			handler.CreateBatch(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			service.AssertExpectations(t)
		})
	}
}

func TestUpdateBatchStatusHandlerPassesDefectiveInfo(t *testing.T) {
	service := new(MockBatchService)
	handler := NewHandler(service)

	body := `{"status":"received","defective_info":{"defectiveCount":1,"positions":[2]}}`
	expected := models.UpdateBatchStatusRequest{
		Status:        "received",
		DefectiveInfo: &models.DefectiveInfo{DefectiveCount: 1, Positions: []int{2}},
	}
	service.On("UpdateStatus", mock.Anything, mock.Anything, int64(5), expected, int64(2)).
		Return(nil, custom_error.New(custom_error.KindValidation, custom_error.CodeDefectiveMismatch, "mismatch")).Once()

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/qr-codes/batches/5/status", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	c.Set("userID", "2")

	handler.UpdateBatchStatus(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), custom_error.CodeDefectiveMismatch)
	service.AssertExpectations(t)
}

func TestListBatchesHandlerRejectsUnknownStatus(t *testing.T) {
	service := new(MockBatchService)
	handler := NewHandler(service)

	c, w := setupTestContext(http.MethodGet, "/qr-codes/batches?status=shipped", nil)
	handler.ListBatches(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
