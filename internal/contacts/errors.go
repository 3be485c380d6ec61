package contacts

import "errors"

var (
	// ErrInvalidName is returned when the display name is empty
	ErrInvalidName = errors.New("contacts: name is required")

	// ErrInvalidEmail is returned when the email does not match the accepted pattern
	ErrInvalidEmail = errors.New("contacts: email is invalid")

	// ErrInvalidPhone is returned when the phone number is empty
	ErrInvalidPhone = errors.New("contacts: phone is required")

	// ErrMissingHeader is returned when a queue file has no usable header row
	ErrMissingHeader = errors.New("contacts: queue file header missing required columns")
)
