package domain

import "errors"

// ErrOrderNotFound is returned by order stores when no record has the id.
var ErrOrderNotFound = errors.New("order not found")
