package serializer

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/pkg/apperr"
	"go.uber.org/zap"
)

var log *zap.Logger

// SetLogger wires the package logger used for unexpected errors.
func SetLogger(l *zap.Logger) { log = l }

// ErrorInfo
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Detail carries the underlying error in non-release mode only.
	Detail string `json:"detail,omitempty"`
}

// Response is the envelope for every endpoint.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Pagination block returned by list endpoints.
type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
}

// PagedResponse
type PagedResponse struct {
	Response
	Pagination Pagination `json:"pagination"`
}

// NewPagination derives the pages count from total and perPage.
func NewPagination(page, perPage int, total int64) Pagination {
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return Pagination{Page: page, PerPage: perPage, Total: total, Pages: pages}
}

// OK
func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Msg
func Msg(message string) Response {
	return Response{Success: true, Message: message}
}

// OKMsg
func OKMsg(data interface{}, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

// Paged
func Paged(data interface{}, p Pagination) PagedResponse {
	return PagedResponse{Response: Response{Success: true, Data: data}, Pagination: p}
}

// Err builds an error envelope from an explicit code and message.
func Err(code, message string, err error) Response {
	info := &ErrorInfo{Code: code, Message: message}
	if err != nil && gin.Mode() != gin.ReleaseMode {
		info.Detail = err.Error()
	}
	return Response{Success: false, Error: info}
}

// ValidationErr
func ValidationErr(message string, err error) Response {
	if message == "" {
		message = "invalid request"
	}
	return Err(apperr.CodeValidation, message, err)
}

// AuthErr
func AuthErr(message string) Response {
	if message == "" {
		message = "authentication required"
	}
	return Err(apperr.CodeAuthentication, message, nil)
}

// FromError maps an application error to its HTTP status and envelope.
// Unexpected errors are logged and surfaced as an opaque 500.
func FromError(err error) (int, Response) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Internal(err)
	}
	if e.Code == apperr.CodeInternal && log != nil {
		log.Sugar().Errorw("internal error", "err", err)
	}
	return e.Status, Err(e.Code, e.Message, e.Err)
}
