package errors

import "net/http"

// Service codes (AA)
const (
	// ServiceCommon is for errors shared by all services.
	ServiceCommon = 0

	// ServiceRAG is for the RAG ingest/search/ask service.
	ServiceRAG = 20
)

// Category codes (BB)
const (
	CategorySuccess  = 0
	CategoryRequest  = 1  // 400
	CategoryResource = 4  // 404
	CategoryInternal = 7  // 500
	CategoryNetwork  = 10 // 502/503
	CategoryTimeout  = 11 // 504
)

// MakeCode creates an error code from service, category, and sequence.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode splits an error code into service, category, and sequence.
func ParseCode(code int) (service, category, sequence int) {
	service = code / 100000
	category = (code % 100000) / 1000
	sequence = code % 1000
	return
}

// GetCategory returns the category code from an error code.
func GetCategory(code int) int {
	return (code % 100000) / 1000
}

// StatusForCategory maps a category code to its HTTP status class.
func StatusForCategory(category int) int {
	switch category {
	case CategorySuccess:
		return http.StatusOK
	case CategoryRequest:
		return http.StatusBadRequest
	case CategoryResource:
		return http.StatusNotFound
	case CategoryNetwork:
		return http.StatusServiceUnavailable
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether code belongs to a 4xx category.
func IsClientError(code int) bool {
	c := GetCategory(code)
	return c == CategoryRequest || c == CategoryResource
}
