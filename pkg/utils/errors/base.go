package errors

import "net/http"

// OK is the zero-code success value.
var OK = &Errno{Code: 0, HTTP: http.StatusOK, MessageEN: "success", MessageZH: "成功"}

// Common errors (service 00).
var (
	ErrBadRequest   = NewRequestErr(ServiceCommon, 1, "Bad request", "请求错误")
	ErrInvalidParam = NewRequestErr(ServiceCommon, 2, "Invalid parameter", "参数无效")
	ErrNotFound     = NewResourceErr(ServiceCommon, 1, "Resource not found", "资源不存在")
	ErrRouteMissing = NewResourceErr(ServiceCommon, 2, "Route not found", "路由不存在")

	ErrRequestTooLarge = Register(New(MakeCode(ServiceCommon, CategoryRequest, 3),
		http.StatusRequestEntityTooLarge, "Request body too large", "请求体过大"))

	ErrInternal     = NewInternalErr(ServiceCommon, 1, "Internal server error", "服务器内部错误")
	ErrPanic        = NewInternalErr(ServiceCommon, 2, "Internal server error", "服务异常")
)
