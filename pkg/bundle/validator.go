package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Result is the outcome of validating a bundle. It is never nil and
// Errors holds path-qualified messages such as "creator.ps_user_id: required".
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Error joins the validation messages into a single string
func (r Result) Error() string {
	return strings.Join(r.Errors, "; ")
}

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

// Validate checks a bundle against the wire contract
func Validate(b *ContentBundle) Result {
	if b == nil {
		return Result{Valid: false, Errors: []string{"bundle: required"}}
	}

	err := validate.Struct(b)
	if err == nil {
		return Result{Valid: true, Errors: []string{}}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Result{Valid: false, Errors: []string{"bundle: " + err.Error()}}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fieldPath(fe), describe(fe)))
	}
	return Result{Valid: false, Errors: msgs}
}

// ValidateJSON decodes a raw wire document and validates it.
// Decoding problems are reported as validation errors.
func ValidateJSON(raw []byte) Result {
	var b ContentBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Result{Valid: false, Errors: []string{
				fmt.Sprintf("%s: must be %s", typeErr.Field, typeErr.Type.String()),
			}}
		}
		return Result{Valid: false, Errors: []string{"bundle: malformed JSON: " + err.Error()}}
	}
	return Validate(&b)
}

// fieldPath strips the root struct name from the validator namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "eq":
		return fmt.Sprintf("must be %q", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
