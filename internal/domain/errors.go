package domain

import "errors"

// Domain errors
var (
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrInvalidDirection = errors.New("invalid transaction direction")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidPeriod    = errors.New("invalid budget period")
	ErrClaimLost        = errors.New("template already claimed for this occurrence")
)

// IsReferentialError reports whether err means a template points at a wallet or
// category that no longer exists.
func IsReferentialError(err error) bool {
	return errors.Is(err, ErrWalletNotFound) || errors.Is(err, ErrCategoryNotFound)
}
