// Package validation decodes and validates inbound proxy request bodies.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

// Length ceilings for inbound fields, in characters. They match the
// max rules on ProxyRequest.
const (
	MaxPromptChars       = 512 * 1024
	MaxSystemPromptChars = 32 * 1024
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrMalformedBody is returned when the body is not a JSON object.
var ErrMalformedBody = errors.New("request body is not a JSON object")

// ProxyRequest is the inbound JSON body. Unknown fields are ignored.
type ProxyRequest struct {
	UserPrompt   string `json:"userPrompt" validate:"required,max=524288"`
	SystemPrompt string `json:"systemPrompt,omitempty" validate:"omitempty,max=32768"`
}

// FieldError reports a field that failed validation.
type FieldError struct {
	Field string
	Rule  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q failed %q validation", e.Field, e.Rule)
}

// Missing reports whether the field was absent or empty.
func (e *FieldError) Missing() bool {
	return e.Rule == "required"
}

// DecodeProxyRequest parses and validates body. It returns ErrMalformedBody
// (wrapped) for anything that is not a JSON object with string fields, and
// a *FieldError for a missing or oversized field.
func DecodeProxyRequest(body []byte) (*ProxyRequest, error) {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, ErrMalformedBody
	}

	var req ProxyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &FieldError{Field: verrs[0].Field(), Rule: verrs[0].Tag()}
		}
		return nil, err
	}

	return &req, nil
}
