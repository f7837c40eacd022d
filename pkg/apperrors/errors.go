package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConfigNotFound     = errors.New("configuration file not found")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrCatalogNotFound    = errors.New("catalog not found")
	ErrValidation         = errors.New("validation failed")
	ErrUnsupportedSource  = errors.New("unsupported datasource type")
)
