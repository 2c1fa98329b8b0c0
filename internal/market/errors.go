package market

import (
	"golang.org/x/xerrors"
)

var (
	// not found
	ErrProviderNotFound = xerrors.New("provider not found")
	ErrJobNotFound      = xerrors.New("job not found")

	// authorization
	ErrUnauthorized = xerrors.New("unauthorized")

	// invalid state
	ErrInvalidJobState   = xerrors.New("job not in correct state")
	ErrProviderNotActive = xerrors.New("provider not active")

	// invalid input
	ErrInvalidProviderData = xerrors.New("invalid provider data")
	ErrNoPayment           = xerrors.New("no payment provided")
	ErrInvalidAddress      = xerrors.New("invalid address")
	ErrInvalidConfig       = xerrors.New("invalid config")

	ErrProviderAlreadyRegistered = xerrors.New("provider already registered")
	ErrCancelWindowExpired       = xerrors.New("cancel window expired")
	ErrContractPaused            = xerrors.New("contract paused")
	ErrArithmetic                = xerrors.New("arithmetic error")

	// deposits
	ErrInsufficientBalance = xerrors.New("insufficient deposit balance")
	ErrDuplicateDeposit    = xerrors.New("deposit already credited")
	ErrInvalidDeposit      = xerrors.New("invalid deposit")

	ErrReplayedRequest = xerrors.New("request already seen")

	ErrNotInitialized     = xerrors.New("market not initialized")
	ErrAlreadyInitialized = xerrors.New("market already initialized")
)
