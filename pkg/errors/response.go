package custom_error

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindDependency:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError writes the machine readable code and a human message.
// Internal causes never reach the response body.
func AbortWithError(c *gin.Context, err error) {
	appErr := As(err)
	_ = c.Error(err)

	body := gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	if appErr.Details != nil && appErr.Kind != KindInternal {
		body["details"] = appErr.Details
	}

	c.AbortWithStatusJSON(HTTPStatus(appErr.Kind), body)
}
