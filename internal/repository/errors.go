package repository

import "errors"

var (
	// ErrRunNotFound indicates no run has the requested id
	ErrRunNotFound = errors.New("batch run not found")

	// ErrInvalidRun indicates a run that cannot be stored
	ErrInvalidRun = errors.New("invalid batch run")

	// ErrRepositoryUnavailable indicates the database could not be opened
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
