package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Options are the harness-wide settings a scenario is run with.
type Options struct {
	// Show renders the browser window. Diagnostic only.
	Show bool `yaml:"show" json:"show"`

	// Width and Height are the viewport size in CSS pixels.
	Width  int `yaml:"width" json:"width" validate:"min=1"`
	Height int `yaml:"height" json:"height" validate:"min=1"`

	// Threshold is the default maximum diff percentage for captures that
	// do not set their own.
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"gte=0,lte=100"`
}

// DefaultOptions returns a hidden 1400x1000 viewport with a 0.2% threshold.
func DefaultOptions() Options {
	return Options{
		Show:      false,
		Width:     1400,
		Height:    1000,
		Threshold: 0.2,
	}
}

var validate = validator.New()

// Validate checks ranges on every field and reports all violations.
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate options: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)",
			strings.ToLower(fe.Field()), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("invalid options: %s", strings.Join(msgs, "; "))
}
