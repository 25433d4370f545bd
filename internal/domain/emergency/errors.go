package emergency

import "errors"

var (
	ErrContactNotFound   = errors.New("emergency contact not found")
	ErrAlertNotFound     = errors.New("emergency alert not found")
	ErrNoContacts        = errors.New("patient has no active emergency contacts")
	ErrInvalidTransition = errors.New("alert cannot move to the requested status")
)
