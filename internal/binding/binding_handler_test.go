package binding

import (
	"bytes"
	"context"
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

type MockBindingService struct {
	mock.Mock
}

func (m *MockBindingService) Bind(ctx context.Context, dbc repository.DatabaseContext, qrID int64, req models.BindRequest, actor int64) (*models.QRCode, error) {
	args := m.Called(ctx, dbc, qrID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QRCode), args.Error(1)
}

func (m *MockBindingService) Unbind(ctx context.Context, dbc repository.DatabaseContext, qrID int64, actor int64) (*models.QRCode, error) {
	args := m.Called(ctx, dbc, qrID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QRCode), args.Error(1)
}

func (m *MockBindingService) FindByAsset(ctx context.Context, dbc repository.DatabaseContext, assetType string, assetID int64) ([]models.QRCode, error) {
	args := m.Called(ctx, dbc, assetType, assetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.QRCode), args.Error(1)
}

func testContext(method, target, body string, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	c.Set("userID", "4")
	return c, w
}

func TestBindHandler(t *testing.T) {
	service := new(MockBindingService)
	handler := NewHandler(service)

	assetType := metadata.AssetTypePart
	service.On("Bind", mock.Anything, mock.Anything, int64(8), models.BindRequest{AssetType: "part", AssetID: 3}, int64(4)).
		Return(&models.QRCode{ID: 8, Status: metadata.QRStatusBound, AssetType: &assetType}, nil)

	c, w := testContext(http.MethodPost, "/qr-codes/8/bind", `{"asset_type":"part","asset_id":3}`, gin.Params{{Key: "id", Value: "8"}})
	handler.Bind(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"bound"`)
}

func TestBindHandlerAlreadyBound(t *testing.T) {
	service := new(MockBindingService)
	handler := NewHandler(service)

	service.On("Bind", mock.Anything, mock.Anything, int64(8), mock.Anything, int64(4)).
		Return(nil, custom_error.Conflict(custom_error.CodeQRAlreadyBound, "qr code 8 is already bound"))

	c, w := testContext(http.MethodPost, "/qr-codes/8/bind", `{"asset_type":"part","asset_id":3}`, gin.Params{{Key: "id", Value: "8"}})
	handler.Bind(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), custom_error.CodeQRAlreadyBound)
}

func TestBindHandlerRequiresAsset(t *testing.T) {
	handler := NewHandler(new(MockBindingService))

	c, w := testContext(http.MethodPost, "/qr-codes/8/bind", `{"asset_type":"part"}`, gin.Params{{Key: "id", Value: "8"}})
	handler.Bind(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnbindHandlerNotBound(t *testing.T) {
	service := new(MockBindingService)
	handler := NewHandler(service)

	service.On("Unbind", mock.Anything, mock.Anything, int64(8), int64(4)).
		Return(nil, custom_error.Conflict(custom_error.CodeQRNotBound, "qr code 8 is allocated, not bound"))

	c, w := testContext(http.MethodPost, "/qr-codes/8/unbind", "", gin.Params{{Key: "id", Value: "8"}})
	handler.Unbind(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), custom_error.CodeQRNotBound)
}

func TestFindByAssetHandlerRejectsBadID(t *testing.T) {
	handler := NewHandler(new(MockBindingService))

	c, w := testContext(http.MethodGet, "/qr-codes/assets/part/x", "", gin.Params{{Key: "type", Value: "part"}, {Key: "id", Value: "x"}})
	handler.FindByAsset(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
