package validator

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagCollection   = "collection"   // Collection name (at most 255 characters, no control or path characters)
	TagHTTPURL      = "httpurl"      // Absolute http(s) URL with a host
	TagNoWhitespace = "nowhitespace" // No whitespace characters
	TagTrimmed      = "trimmed"      // String should be trimmed (no leading/trailing spaces)
)

const (
	collectionMaxLen         = 255
	collectionForbiddenChars = `/\:*?"<>|`
)

// registerCustomRules registers all custom validation rules.
func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagCollection, validateCollection)
	_ = v.validate.RegisterValidation(TagHTTPURL, validateHTTPURL)
	_ = v.validate.RegisterValidation(TagNoWhitespace, validateNoWhitespace)
	_ = v.validate.RegisterValidation(TagTrimmed, validateTrimmed)
}

// validateCollection rejects collection names no backend can store.
// Blank names pass so the service reports them as missing; backend specific
// rules (e.g. Milvus identifiers) are checked by the vector store.
func validateCollection(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if strings.TrimSpace(value) == "" {
		return true
	}
	if utf8.RuneCountInString(value) > collectionMaxLen {
		return false
	}
	return !strings.ContainsAny(value, collectionForbiddenChars) &&
		!strings.ContainsFunc(value, unicode.IsControl)
}

// validateHTTPURL validates absolute http and https URLs.
func validateHTTPURL(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}

	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validateNoWhitespace validates that string contains no whitespace.
func validateNoWhitespace(fl validator.FieldLevel) bool {
	return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
}

// validateTrimmed validates that string has no leading/trailing whitespace.
func validateTrimmed(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == strings.TrimSpace(value)
}
