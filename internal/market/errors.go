package market

import "errors"

var (
	ErrInvalidPrice     = errors.New("invalid price")
	ErrNoListingFound   = errors.New("no listing found")
	ErrIncorrectPayment = errors.New("incorrect payment")
	ErrNoFundsAvailable = errors.New("no funds available")
	ErrPayoutFailed     = errors.New("payout failed")
	ErrSellerMismatch   = errors.New("seller mismatch")
)
