package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound               = errors.New("entity not found")
	ErrAlreadyExists          = errors.New("entity already exists")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrCrossTenantLink        = errors.New("link endpoints belong to different tenants")
	ErrConnectionLimitReached = errors.New("connection limit reached")
	ErrCredentialsUnreadable  = errors.New("stored credentials unreadable")
	ErrAssetFetchUnsupported  = errors.New("source asset fetch unsupported")
	ErrLockNotAcquired        = errors.New("could not acquire lock")

	// Storage-layer errors
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
