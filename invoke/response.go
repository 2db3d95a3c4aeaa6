package invoke

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Response is the envelope of every reply.
type Response struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Status:  statusSuccess,
		Message: message,
		Data:    data,
	})
}

func failure(c *gin.Context, code int, message string, err error) {
	r := Response{
		Code:    code,
		Status:  statusError,
		Message: message,
	}
	if err != nil {
		r.Error = err.Error()
	}
	c.AbortWithStatusJSON(code, r)
}
