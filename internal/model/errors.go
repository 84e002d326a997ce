package model

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrInsufficientData         = errors.New("insufficient data")
	ErrInvalidSplit             = errors.New("invalid split")
	ErrMisalignedForecast       = errors.New("misaligned forecast")
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")
	ErrAmbiguousTimestamp       = errors.New("ambiguous timestamp")
)

// InsufficientDataError reports too few points for an operation.
type InsufficientDataError struct {
	Op   string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need at least %d known points, got %d", e.Op, e.Need, e.Got)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// InvalidSplitError reports a holdout ratio that yields a degenerate partition.
type InvalidSplitError struct {
	Op       string
	Ratio    float64
	N        int
	Train    int
	Test     int
	MinTrain int
	MinTest  int
	Reason   string
}

func (e *InvalidSplitError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: invalid split at ratio %g of %d points: %s", e.Op, e.Ratio, e.N, e.Reason)
	}
	return fmt.Sprintf("%s: invalid split at ratio %g of %d points: train=%d (min %d), test=%d (min %d)",
		e.Op, e.Ratio, e.N, e.Train, e.MinTrain, e.Test, e.MinTest)
}

func (e *InvalidSplitError) Is(target error) bool { return target == ErrInvalidSplit }

// MisalignedForecastError reports a forecast whose length does not match
// the window it is scored against.
type MisalignedForecastError struct {
	Op    string
	Model string
	Want  int
	Got   int
}

func (e *MisalignedForecastError) Error() string {
	return fmt.Sprintf("%s: model %q returned %d forecast points, want %d", e.Op, e.Model, e.Got, e.Want)
}

func (e *MisalignedForecastError) Is(target error) bool { return target == ErrMisalignedForecast }

// UnsupportedConfigurationError reports an unknown or invalid option.
type UnsupportedConfigurationError struct {
	Op     string
	Key    string
	Value  string
	Reason string
}

func (e *UnsupportedConfigurationError) Error() string {
	msg := fmt.Sprintf("%s: unsupported %s %q", e.Op, e.Key, e.Value)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnsupportedConfigurationError) Is(target error) bool {
	return target == ErrUnsupportedConfiguration
}

// AmbiguousTimestampError reports a sample that cannot be placed on the
// regular grid unambiguously.
type AmbiguousTimestampError struct {
	Op        string
	Timestamp string
	Reason    string
}

func (e *AmbiguousTimestampError) Error() string {
	return fmt.Sprintf("%s: ambiguous timestamp %s: %s", e.Op, e.Timestamp, e.Reason)
}

func (e *AmbiguousTimestampError) Is(target error) bool { return target == ErrAmbiguousTimestamp }
