package fulfiller

import "errors"

var (
	ErrNoJob         = errors.New("no job for request spec")
	ErrInvalidJob    = errors.New("invalid job definition")
	ErrInvalidConfig = errors.New("invalid node configuration")
)
