package domain

import "errors"

var (
	// ErrInvalidQuantity is returned when a kit operation receives a non-positive quantity
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrNotFound is returned when the document store has no entity for the requested id
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when the document store already holds an entity with the requested id
	ErrConflict = errors.New("document already exists")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrStoreFailure is returned when the document store cannot serve a request
	ErrStoreFailure = errors.New("document store request failed")

	// ErrUnsupportedFragment is returned when a store backend cannot express a query fragment
	ErrUnsupportedFragment = errors.New("query fragment not supported by store")

	// ErrUnknownCollection is returned when a collection is not managed by this service
	ErrUnknownCollection = errors.New("unknown collection")
)
