// Package response provides the unified API envelope and gin writers.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/linkvault/pkg/infra/middleware/common"
	"github.com/kart-io/linkvault/pkg/utils/errors"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// HTTPCode is the HTTP status code (optional, for client convenience)
	HTTPCode int `json:"http_code,omitempty"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload
	Data interface{} `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`
}

// ErrorDetails is the data payload attached to upstream failures.
type ErrorDetails struct {
	Details string `json:"details"`
}

// Success creates a successful response with data.
func Success(data interface{}) *Response {
	return &Response{
		Code:     0,
		HTTPCode: http.StatusOK,
		Message:  "success",
		Data:     data,
	}
}

// Err creates an error response from an Errno.
// The cause message, when present, is exposed as details; stacks never are.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	r := &Response{
		Code:     e.Code,
		HTTPCode: e.HTTPStatus(),
		Message:  e.MessageEN,
	}
	if cause := e.Cause(); cause != nil {
		r.Data = ErrorDetails{Details: cause.Error()}
	}
	return r
}

// HTTPStatus returns the HTTP status for this response.
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}
	return errors.StatusForCategory(errors.GetCategory(r.Code))
}

// WithRequestID adds request ID to the response.
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

func write(c *gin.Context, r *Response) {
	r.WithRequestID(common.GetRequestID(c.Request.Context()))
	c.JSON(r.HTTPStatus(), r)
}

// OK writes a successful response.
func OK(c *gin.Context, data interface{}) {
	write(c, Success(data))
}

// Fail writes an error response and aborts the handler chain.
func Fail(c *gin.Context, e *errors.Errno) {
	write(c, Err(e))
	c.Abort()
}

// FailWithError converts err to an Errno and writes it.
func FailWithError(c *gin.Context, err error) {
	Fail(c, errors.FromError(err))
}
