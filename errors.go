package portfoliocad

import "github.com/pkg/errors"

var (
	ErrEnvironmentUnavailable = errors.New("persistent database is not available in this environment")
	ErrStorageWriteFailed     = errors.New("image storage write failed")
	ErrStorageReadFailed      = errors.New("image storage read failed")
	ErrInvalidID              = errors.New("image id cannot be empty")
)
