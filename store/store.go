package store

import (
	"errors"
)

var (
	ErrNotFound            = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

func IsErrNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsErrInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}
