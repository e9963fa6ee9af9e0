// Package validator wraps go-playground/validator with the custom tags the
// licensing request payloads use.
package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var licenseTypes = map[string]struct{}{
	"A1": {}, "B1": {}, "A": {}, "B": {}, "C1": {}, "C": {},
	"D1": {}, "D": {}, "EB": {}, "EC1": {}, "EC": {},
}

var applicationTypes = map[string]struct{}{
	"NEW": {}, "RENEWAL": {}, "UPGRADE": {}, "DUPLICATE": {},
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	v.registerCustomValidations()
	return v
}

func (v *Validator) registerCustomValidations() {
	_ = v.validate.RegisterValidation("license_type", func(fl validator.FieldLevel) bool {
		_, ok := licenseTypes[fl.Field().String()]
		return ok
	})
	_ = v.validate.RegisterValidation("application_type", func(fl validator.FieldLevel) bool {
		_, ok := applicationTypes[fl.Field().String()]
		return ok
	})
	_ = v.validate.RegisterValidation("country_code", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 2 {
			return false
		}
		for _, r := range s {
			if r < 'A' || r > 'Z' {
				return false
			}
		}
		return true
	})
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, e := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"Field '%s' failed validation '%s'",
					e.Field(),
					e.Tag(),
				))
			}
			return fmt.Errorf("validation failed: %v", errMessages)
		}
		return err
	}
	return nil
}

// ValidateStructured returns a map of field -> error message for frontend usage
func (v *Validator) ValidateStructured(i interface{}) map[string]string {
	errs := make(map[string]string)
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				msg := fmt.Sprintf("failed validation on '%s'", e.Tag())
				switch e.Tag() {
				case "required":
					msg = "This field is required"
				case "license_type":
					msg = "Unknown license type"
				case "application_type":
					msg = "Application type must be NEW, RENEWAL, UPGRADE or DUPLICATE"
				case "country_code":
					msg = "Country code must be a 2-letter ISO code"
				case "uuid":
					msg = "Must be a valid UUID"
				}
				errs[e.Field()] = msg
			}
		} else {
			errs["_global"] = err.Error()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
