package service

import "errors"

// Sentinel errors returned by the services. Handlers map them to status codes with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrUnauthorized       = errors.New("invalid credentials")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrAdvisorUnavailable = errors.New("advisor unavailable")
)
