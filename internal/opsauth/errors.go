package opsauth

import "errors"

// Sentinel kinds for ops credential errors.
var (
	ErrReadFile    = errors.New("read auth file failed")
	ErrMalformed   = errors.New("malformed auth line")
	ErrInvalidHash = errors.New("invalid argon2id hash")
	ErrSalt        = errors.New("generate salt failed")
	ErrEmptyUser   = errors.New("username must be non-empty and contain no colon")
	ErrEmptyPass   = errors.New("password must not be empty")
	ErrWriteFile   = errors.New("write auth file failed")
	ErrFileExists  = errors.New("auth file already exists")
)
