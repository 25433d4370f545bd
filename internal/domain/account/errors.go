package account

import "errors"

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is not active")
	ErrNotFound           = errors.New("account not found")
	ErrInvalidToken       = errors.New("token is invalid or has expired")
	ErrNotHospital        = errors.New("no active hospital account with that email")
)
