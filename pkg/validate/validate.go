// Package validate runs go-playground/validator tags and flattens failures
// into a field → message map keyed by JSON names.
//
//	type SignupRequest struct {
//	    Email    string `json:"email"    validate:"required,email,max=255"`
//	    Password string `json:"password" validate:"required,min=8,max=72"`
//	}
//
//	if errs := validate.Struct(req); validate.HasErrors(errs) { ... }
//
// Extra tags: positive_decimal (shopspring decimal strictly > 0).
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()

	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})

	// Decimals are validated through their string form; validator does not
	// run field tags on struct-typed values.
	val.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = val.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})

	return val
}

// Struct validates s and returns nil when it passes.
func Struct(s interface{}) map[string]string {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fieldPath(fe.Namespace())
		if _, seen := out[key]; !seen {
			out[key] = message(fe)
		}
	}
	return out
}

func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

// fieldPath drops the root struct name: "SignupRequest.items[0].quantity"
// becomes "items[0].quantity".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "positive_decimal":
		return "must be a positive amount"
	case "nefield":
		return "must differ from " + fe.Param()
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
