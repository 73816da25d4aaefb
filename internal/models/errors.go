package models

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies a failed routing, optimization or geocoding call
type FailureKind string

const (
	KindInsufficientPoints FailureKind = "insufficient_points"
	KindNetwork            FailureKind = "network_error"
	KindNoRoute            FailureKind = "no_route"
	KindNoTripFound        FailureKind = "no_trip_found"
	KindMalformed          FailureKind = "malformed"
	KindSolverBusy         FailureKind = "solver_busy"
	KindNotFound           FailureKind = "not_found"
	KindUnknown            FailureKind = "unknown"
)

// ServiceError is returned by the external service adapters
type ServiceError struct {
	Service string
	Kind    FailureKind
	Reason  string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Service, e.Kind, e.Reason)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError builds a ServiceError without an underlying cause
func NewServiceError(service string, kind FailureKind, format string, args ...any) *ServiceError {
	return &ServiceError{Service: service, Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// NetworkFailure wraps a transport error or timeout
func NetworkFailure(service string, err error) *ServiceError {
	return &ServiceError{Service: service, Kind: KindNetwork, Reason: err.Error(), Err: err}
}

// KindOf returns the failure kind of err. Context deadlines count as network failures.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var serr *ServiceError
	if errors.As(err, &serr) {
		return serr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindUnknown
}
