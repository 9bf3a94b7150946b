// domain/errors.go
package domain

import "errors"

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobExists         = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrInvalidVideoURL   = errors.New("invalid video url")
	ErrInvalidRequest    = errors.New("invalid request")
)
