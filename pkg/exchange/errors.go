package exchange

import "errors"

var (
	// ErrExchangeComplete is returned when a message or claim targets an
	// exchange that has completed or is completing, including one that was
	// cleaned up after completion
	ErrExchangeComplete = errors.New("exchange already complete")
	// ErrAlreadyComplete is reported when a message arrives for a completed exchange
	ErrAlreadyComplete = ErrExchangeComplete

	// ErrExchangeClosed is returned for an exchange discarded before it completed
	ErrExchangeClosed = errors.New("exchange closed")
	// ErrExchangeTimeout is returned when a wait reaches its deadline
	ErrExchangeTimeout = errors.New("exchange timed out")
	// ErrExchangeIncomplete is returned when cleaning up an exchange that has not completed
	ErrExchangeIncomplete = errors.New("exchange not complete")
	// ErrOutOfOrder is returned when a slot's prerequisite slot is still empty
	ErrOutOfOrder = errors.New("prerequisite message missing")
	// ErrSlotFilled is returned when a slot already holds or has reserved a message
	ErrSlotFilled = errors.New("message slot already filled")
	// ErrClaimSettled is returned when a claim is committed or faulted twice
	ErrClaimSettled = errors.New("claim already settled")

	// ErrUnknownExchange is returned when no exchange is registered under a key
	ErrUnknownExchange = errors.New("unknown exchange")
	// ErrExchangeExists is returned when creating an exchange under a live key
	ErrExchangeExists = errors.New("exchange already exists")
)
