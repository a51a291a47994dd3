package util

import (
	"errors"
	"net/http"

	"smartprep_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// StatusFor 领域错误到 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrLevelLocked):
		return http.StatusForbidden
	case errors.Is(err, ErrNoContent), errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrMatcherUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidLevel),
		errors.Is(err, ErrInvalidAnswer), errors.Is(err, ErrEmptyResume),
		errors.Is(err, ErrUnsupportedFile), errors.Is(err, ErrInvalidPoints):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrSubmitNotAllowed),
		errors.Is(err, ErrAlreadySubmitted), errors.Is(err, ErrTimerUnavailable),
		errors.Is(err, ErrNoActiveQuiz), errors.Is(err, ErrSuperseded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HandleError 已知错误按状态码返回，未知错误记录日志并返回 500
func HandleError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		LogInternalError(c, err)
		return
	}
	Error(c, status, err.Error())
}
