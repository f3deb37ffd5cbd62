package pipeline

import "errors"

var (
	// ErrSchemaValidation marks a payload that parsed but lacks required fields
	// or carries values outside their domain.
	ErrSchemaValidation = errors.New("schema validation failed")
	ErrInvalidEndpoint  = errors.New("invalid endpoint")
)
