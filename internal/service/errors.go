package service

import (
	"errors"
	"fmt"

	"plate-dashboard/internal/repository"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrLoaderPanic  = errors.New("loader panic")

	// errStale marks a response whose request no longer matches the state.
	errStale = errors.New("stale response")
)

// Resource names one remote resource the dashboard loads.
type Resource string

const (
	ResourceOverview  Resource = "overview"
	ResourceDaily     Resource = "daily"
	ResourceHourly    Resource = "hourly"
	ResourceTopPlates Resource = "top-plates"
	ResourcePlates    Resource = "plates"
	ResourceAnalytics Resource = "analytics"
)

func (r Resource) Label() string {
	switch r {
	case ResourceOverview:
		return "overview statistics"
	case ResourceDaily:
		return "daily series"
	case ResourceHourly:
		return "hourly series"
	case ResourceTopPlates:
		return "top plates"
	case ResourcePlates:
		return "plate reads"
	case ResourceAnalytics:
		return "analytics"
	default:
		return string(r)
	}
}

// LoadError is a failed load of one resource.
type LoadError struct {
	Resource Resource
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Resource, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// failureReason is the text shown to the user. Server messages are passed on
// verbatim.
func failureReason(err error) string {
	var serverErr *repository.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Message
	}
	return err.Error()
}

func outcome(err error) string {
	var serverErr *repository.ServerError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errStale):
		return "stale"
	case errors.As(err, &serverErr):
		return "server_error"
	case errors.Is(err, repository.ErrNetwork):
		return "network_error"
	case errors.Is(err, repository.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrLoaderPanic):
		return "panic"
	default:
		return "error"
	}
}
