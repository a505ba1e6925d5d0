package service

import "errors"

var (
	ErrUnspecifiedID      = errors.New("no id was supplied")
	ErrEmptyValueSupplied = errors.New("empty value supplied")

	// ErrAccountTelRequired is returned when an account phone number is not provided.
	ErrAccountTelRequired = errors.New("account tel is required")
	ErrAccountNotFound    = errors.New("could not find account with given tel")
	ErrAccountExists      = errors.New("an account with this tel already exists")
	ErrIllegalEventType   = errors.New("illegal event type")

	ErrMessageRecipientRequired = errors.New("message recipient is required")
	ErrMessageBodyRequired      = errors.New("message body is required")
)
