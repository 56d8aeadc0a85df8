package rediscache

import "errors"

// Sentinel errors for the Redis status cache.
var (
	// ErrDisabled indicates Redis is disabled in configuration.
	ErrDisabled = errors.New("rediscache: disabled in configuration")

	// ErrConnectionFailed indicates the initial PING failed.
	ErrConnectionFailed = errors.New("rediscache: connection failed")

	// ErrCommandFailed indicates a Redis command returned an error.
	ErrCommandFailed = errors.New("rediscache: command failed")

	// ErrCorruptEntry indicates a cached value could not be decoded.
	ErrCorruptEntry = errors.New("rediscache: corrupt entry")

	// ErrClosed indicates the cache was used after Close.
	ErrClosed = errors.New("rediscache: closed")
)
