package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrImageTooLarge is returned when an uploaded image exceeds the configured limit
	ErrImageTooLarge = errors.New("image exceeds maximum upload size")

	// ErrSessionNotFound is returned when an analysis session is unknown or expired
	ErrSessionNotFound = errors.New("analysis session not found")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrVisionAPIFailure is returned when the web-detection request fails
	ErrVisionAPIFailure = errors.New("vision API request failed")

	// ErrVisionUnavailable is returned while the circuit breaker is open
	ErrVisionUnavailable = errors.New("vision API temporarily unavailable")

	// ErrTrackingFailure is returned when the tracking store cannot be written
	ErrTrackingFailure = errors.New("tracking store failure")
)
