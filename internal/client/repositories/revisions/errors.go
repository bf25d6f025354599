package revisions

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrWrongRowsCount   = errors.New("wrong rows affected count")
	ErrAlreadyExists    = errors.New("already exists")
)
