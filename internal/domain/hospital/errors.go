package hospital

import "errors"

var ErrNotFound = errors.New("hospital not found")
