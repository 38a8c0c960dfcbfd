package repository

import "errors"

var (
	// ErrNotFound indicates no scan exists with the requested ID.
	ErrNotFound = errors.New("scan not found")

	// ErrInvalidRecord indicates a record missing its ID.
	ErrInvalidRecord = errors.New("scan record requires an id")

	// ErrRepositoryUnavailable indicates the backing store could not be reached.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
