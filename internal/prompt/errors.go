package prompt

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTemplate = errors.New("unknown prompt template")
	ErrInvalidTemplate = errors.New("invalid prompt template")
	ErrMissingParam    = errors.New("missing prompt parameter")
)

// MissingParamError reports a required placeholder with no value.
type MissingParamError struct {
	TemplateID string
	Param      string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("template %s: missing value for %q", e.TemplateID, e.Param)
}

func (e *MissingParamError) Unwrap() error { return ErrMissingParam }
