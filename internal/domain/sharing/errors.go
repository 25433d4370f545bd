package sharing

import "errors"

var (
	ErrNotFound          = errors.New("shared access not found")
	ErrInvalidTransition = errors.New("shared access cannot move to the requested status")
	ErrProviderNotFound  = errors.New("provider is not a registered, active hospital")
	ErrNotLive           = errors.New("shared access is not active")
)
