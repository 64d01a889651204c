package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid carousel config")
	ErrNoCredentials = errors.New("no credentials for platform")
)
