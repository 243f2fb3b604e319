package domain

import "errors"

// Error kinds shared across the engine and market manager. Lookup-style
// operations (get_order, cancel_order, ...) never return these; they
// return a plain bool/ok instead. These sentinels cover the operations
// that can genuinely fail (add_order validation, create_market).
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInternal        = errors.New("internal error")
)
