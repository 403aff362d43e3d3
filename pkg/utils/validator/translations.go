package validator

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// registerCustomTranslations registers translations for custom validation rules.
func (v *Validator) registerCustomTranslations() {
	messages := map[string]map[string]string{
		LangEN: {
			TagCollection:   "{0} must be at most 255 characters and must not contain control characters or any of / \\ : * ? \" < > |",
			TagHTTPURL:      "{0} must be an absolute http or https URL",
			TagNoWhitespace: "{0} must not contain whitespace characters",
			TagTrimmed:      "{0} must not have leading or trailing spaces",
		},
		LangZH: {
			TagCollection:   "{0}最多255个字符，且不能包含控制字符或 / \\ : * ? \" < > | 等字符",
			TagHTTPURL:      "{0}必须是完整的 http 或 https 地址",
			TagNoWhitespace: "{0}不能包含空白字符",
			TagTrimmed:      "{0}不能有前导或尾随空格",
		},
	}

	for lang, translations := range messages {
		trans := v.GetTranslator(lang)
		if trans == nil {
			continue
		}
		for tag, message := range translations {
			registerTranslation(v.validate, trans, tag, message)
		}
	}
}

// registerTranslation registers a single translation.
func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}
