package models

import "errors"

// Validation errors rejected before any persistence or runtime call
var (
	ErrInvalidID            = errors.New("server id must contain only letters, digits, dashes and underscores")
	ErrInvalidServerType    = errors.New("invalid server type")
	ErrInvalidRestartPolicy = errors.New("invalid restart policy")
	ErrInvalidPort          = errors.New("port must be between 1 and 65535")
)
