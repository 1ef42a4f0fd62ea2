package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/storecredit/internal/service"
)

var phoneRegexp = regexp.MustCompile(`^\+?[0-9]{5,20}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// decimal сравнивается как число
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRegexp.MatchString(fl.Field().String())
	})

	// имя поля из json тега
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs the struct tags.
func (h *handler) decodeAndValidate(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return service.NewServiceError(service.CodeInvalidRequest, err)
	}
	if err = json.Unmarshal(body, dst); err != nil {
		return service.NewServiceError(service.CodeInvalidRequest, fmt.Errorf("malformed JSON: %w", err))
	}

	if err = h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, fe := range validationErrors {
				messages = append(messages, validationMessage(fe))
			}
			return service.NewServiceError(service.CodeInvalidRequest, errors.New(strings.Join(messages, "; ")))
		}
		return service.NewServiceError(service.CodeInvalidRequest, err)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("the '%s' field is required", fe.Field())
	case "phone":
		return fmt.Sprintf("the '%s' format is invalid", fe.Field())
	case "gt", "gte", "lte", "max":
		return fmt.Sprintf("the '%s' field must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("the '%s' field is invalid", fe.Field())
	}
}
