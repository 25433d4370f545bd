package record

import "errors"

var (
	ErrNotFound    = errors.New("medical record not found")
	ErrFileMissing = errors.New("file is required")
)
