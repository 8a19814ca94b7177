package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	orderIDPattern = regexp.MustCompile(`^A\d{4}$`)
	zipPattern     = regexp.MustCompile(`^\d{5,6}$`)

	argValidate *validator.Validate
)

func init() {
	argValidate = validator.New(validator.WithRequiredStructEnabled())
	argValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = argValidate.RegisterValidation("order_id", func(fl validator.FieldLevel) bool {
		return orderIDPattern.MatchString(fl.Field().String())
	})
	_ = argValidate.RegisterValidation("zip", func(fl validator.FieldLevel) bool {
		return zipPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
}

// decodeArgs maps the model-supplied argument object onto dst and validates
// it. Unknown keys are ignored.
func decodeArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return newError(CodeInvalidArguments, "arguments are not encodable: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return newError(CodeInvalidArguments, "arguments do not match the tool schema: %v", err)
	}
	if err := argValidate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return newError(CodeInvalidArguments, "%v", err)
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return newError(CodeInvalidArguments, "%s is required", field)
	case "zip":
		return newError(CodeInvalidZip, "invalid zip code format: %v, please provide a 5-6 digit zip code", fe.Value())
	case "order_id":
		return newError(CodeInvalidArguments, "invalid order ID format: %v, order IDs look like A1234", fe.Value())
	case "email":
		return newError(CodeInvalidArguments, "invalid email format: %v", fe.Value())
	default:
		return newError(CodeInvalidArguments, "%s failed %s validation", field, fe.Tag())
	}
}

// tagList accepts either a JSON array of strings or a comma-separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*t = normalizeTags(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("tags must be a list or a comma-separated string")
	}
	*t = normalizeTags(strings.Split(s, ","))
	return nil
}

func normalizeTags(in []string) tagList {
	out := make(tagList, 0, len(in))
	for _, tag := range in {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// flexString accepts a JSON string or number; models often emit numeric
// postal codes unquoted.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a string or number")
	}
	*f = flexString(n.String())
	return nil
}
