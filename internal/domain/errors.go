package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrCardNotFound      = errors.New("card not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrInvalidAction     = errors.New("unknown order action")
	ErrForbidden         = errors.New("forbidden")
	ErrNotEligible       = errors.New("order is not eligible for review")
	ErrAlreadyReviewed   = errors.New("order already reviewed")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrConflict          = errors.New("optimistic lock conflict")
	ErrInvalidRequest    = errors.New("invalid request")
)
