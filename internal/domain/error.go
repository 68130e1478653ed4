package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthorized       = errors.New("caller is not allowed to perform this operation")
	ErrConflict           = errors.New("operation conflicts with current state")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Payment pipeline errors
	ErrAmountOutOfBounds  = errors.New("amount outside the configured bounds")
	ErrGatewayFailure     = errors.New("payment gateway request failed")
	ErrVerificationFailed = errors.New("payment could not be verified")
	ErrInvalidTransition  = errors.New("payment status transition not allowed")
	ErrAlreadyRefunded    = errors.New("payment already refunded")
	ErrRefundNotCompleted = errors.New("only completed payments can be refunded")

	// Membership/discount errors
	ErrNoActiveMembership   = errors.New("no active membership")
	ErrMembershipExists     = errors.New("user already has an active membership")
	ErrDiscountNotStarted   = errors.New("discount code is not valid yet")
	ErrDiscountExpired      = errors.New("discount code has expired")
	ErrDiscountExhausted    = errors.New("discount code usage limit reached")
	ErrDiscountWrongPlan    = errors.New("discount code does not apply to this plan")
	ErrDiscountBelowMinimum = errors.New("purchase amount below the code minimum")
	ErrDiscountInactive     = errors.New("discount code is not active")
)
