package usecases

import "errors"

// ErrInvalidQuery marks a request the caller must fix.
var ErrInvalidQuery = errors.New("invalid query")
