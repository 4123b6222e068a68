package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// FieldErrors maps a JSON field name to its messages.
type FieldErrors map[string][]string

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Decimals are validated through their string form.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	// Columns are decimal(8,2).
	if err := v.RegisterValidation("macro", validateMacro); err != nil {
		panic(fmt.Sprintf("register macro validation: %v", err))
	}
	return &Validator{validate: v}
}

// Struct validates s and returns nil when it is valid.
func (v *Validator) Struct(s interface{}) FieldErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"non_field_errors": {err.Error()}}
	}

	out := FieldErrors{}
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], message(fe))
	}
	return out
}

// Bind decodes the JSON body into dst and validates it. On failure the 400
// response has already been written and Bind returns false.
func (v *Validator) Bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		Error(w, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return false
	}
	if fieldErrs := v.Struct(dst); fieldErrs != nil {
		JSON(w, http.StatusBadRequest, fieldErrs)
		return false
	}
	return true
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.String {
			return "This field may not be blank."
		}
		return "This field is required."
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "min", "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "macro":
		return "Ensure this value is between 0 and 999999.99 with at most 2 decimal places."
	default:
		return "Invalid value."
	}
}

func validateMacro(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return !d.IsNegative() && d.Equal(d.Truncate(2)) && d.LessThan(decimal.New(1, 6))
}
