package domain

import (
	"fmt"
	"time"
)

// ClassProbabilities is the predicted distribution over
// the three movement classes for one (asset, date)
type ClassProbabilities struct {
	Down float64 `json:"probDown"`
	Flat float64 `json:"probFlat"`
	Up   float64 `json:"probUp"`
}

// FlatIsMax is true only when flat strictly beats both
// directional classes. ties go to a directional class
func (p ClassProbabilities) FlatIsMax() bool {
	return p.Flat > p.Up && p.Flat > p.Down
}

// Observation is one row of model output joined with the
// realized forward return for the same (asset, date)
type Observation struct {
	Asset string
	Date  time.Time

	// at least one of these is populated, depending on
	// which converter will consume the observation
	Prediction    *float64
	Probabilities *ClassProbabilities

	RealizedReturn float64
}

type InputError struct {
	Reason string
}

func (e InputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func NewInputError(format string, args ...interface{}) error {
	return InputError{
		Reason: fmt.Sprintf(format, args...),
	}
}
