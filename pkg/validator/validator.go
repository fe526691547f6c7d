package validator

import (
	"github.com/go-playground/validator/v10"
)

// StructValidator wraps go-playground/validator for request structs
type StructValidator struct {
	v *validator.Validate
}

// New creates a new StructValidator instance
func New() *StructValidator {
	return &StructValidator{v: validator.New()}
}

// Validate performs struct validation
func (sv *StructValidator) Validate(i interface{}) error {
	return sv.v.Struct(i)
}
