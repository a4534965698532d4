package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")
	ErrInsufficientData   = errors.New("not enough data points")

	// Terminal Specific Errors
	ErrConnectionFailed     = errors.New("failed to connect to the trading terminal")
	ErrAuthenticationFailed = errors.New("terminal authentication failed (check token and account)")
	ErrSymbolUnavailable    = errors.New("symbol is not available on this account")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrFetchFailed          = errors.New("failed to fetch data from the terminal")
	ErrOrderRejected        = errors.New("order rejected by the terminal")
	ErrNotConnected         = errors.New("terminal session is not connected")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
