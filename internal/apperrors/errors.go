package apperrors

import "errors"

// Business logic errors represent constraint violations inside the
// simulation engine. The runner converts most of these into accumulated
// warnings rather than aborting a run.
var (
	// ErrInsufficientCash indicates a buy would cost more than the
	// available cash balance. The runner catches this and shrinks the
	// order to the affordable quantity.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInsufficientShares indicates a sell requested more shares than
	// are held. This signals a planning bug in trade generation and is
	// surfaced as a warning, never silently clamped.
	ErrInsufficientShares = errors.New("insufficient shares for sale")

	// ErrNoPriceData indicates a symbol has no bar for the requested day.
	ErrNoPriceData = errors.New("no price data")

	// ErrContributionCapExceeded indicates a deposit would push the
	// year's contributions over the annual IRA/Roth limit.
	ErrContributionCapExceeded = errors.New("contribution cap exceeded")
)

// Configuration errors are fatal: they are surfaced before the daily
// loop begins and abort the run.
var (
	// ErrEmptyUniverse indicates the strategy lists no symbols.
	ErrEmptyUniverse = errors.New("universe must contain at least one symbol")

	// ErrInvalidDateRange indicates the period end is not after the start.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrNonPositiveCash indicates initial cash is zero or negative.
	ErrNonPositiveCash = errors.New("initial cash must be positive")

	// ErrNoMarketData indicates no symbol produced any bars for the range.
	ErrNoMarketData = errors.New("no market data loaded")
)

// Persistence and API errors.
var (
	// ErrRunNotFound indicates a simulation run with the given ID does
	// not exist.
	ErrRunNotFound = errors.New("simulation run not found")

	// ErrCredentialNotFound indicates no stored API key for a provider.
	ErrCredentialNotFound = errors.New("provider credential not found")

	// ErrInvalidUUID indicates a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrEmptyID indicates a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")

	// ErrUnknownProvider indicates an unrecognized data provider name.
	ErrUnknownProvider = errors.New("unknown data provider")
)
