package ai

import "errors"

var (
	ErrUnavailable = errors.New("embedding provider unavailable")
	ErrTimeout     = errors.New("embedding provider timeout")
	ErrEmptyInput  = errors.New("empty input text")
)
