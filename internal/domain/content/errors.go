package content

import (
	"errors"
)

// Sentinel error kinds for catalog loading.
var (
	ErrDecode         = errors.New("content decode failed")
	ErrInvalidCatalog = errors.New("invalid content catalog")
	ErrRender         = errors.New("content render failed")
)
