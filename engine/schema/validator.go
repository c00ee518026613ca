package schema

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// -----------------------------------------------------------------------------
// Validator interface
// -----------------------------------------------------------------------------

type Validator interface {
	Validate(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// CompositeValidator
// -----------------------------------------------------------------------------

// CompositeValidator runs validators in order and stops at the first error.
type CompositeValidator struct {
	validators []Validator
}

func NewCompositeValidator(validators ...Validator) *CompositeValidator {
	return &CompositeValidator{validators: validators}
}

func (v *CompositeValidator) AddValidator(validator Validator) {
	v.validators = append(v.validators, validator)
}

func (v *CompositeValidator) Validate(ctx context.Context) error {
	for _, validator := range v.validators {
		if err := validator.Validate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// StructValidator
// -----------------------------------------------------------------------------

type StructValidator struct {
	validate *validator.Validate
	value    any
}

func NewStructValidator(value any) *StructValidator {
	return &StructValidator{
		validate: validator.New(),
		value:    value,
	}
}

func (v *StructValidator) Validate(_ context.Context) error {
	return v.validate.Struct(v.value)
}

// -----------------------------------------------------------------------------
// ShapeValidator
// -----------------------------------------------------------------------------

// ShapeValidator validates a concrete value against a Shape, formatting the
// structural diff into one error. Used for config-time checks; the task
// executor consumes ValidateValue directly to keep the violation list.
type ShapeValidator struct {
	shape Shape
	value any
	label string
}

func NewShapeValidator(shape Shape, value any, label string) *ShapeValidator {
	return &ShapeValidator{shape: shape, value: value, label: label}
}

func (v *ShapeValidator) Validate(_ context.Context) error {
	res := v.shape.ValidateValue(v.value)
	if res.Valid() {
		return nil
	}
	return fmt.Errorf("%s does not match declared shape: %s", v.label, res.Summary())
}
