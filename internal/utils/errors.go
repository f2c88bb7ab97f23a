package utils

import (
	"errors"
	"fmt"
	"time"
)

// InsufficientDataError reports that an operation was asked to run on fewer
// records or days than it needs.
type InsufficientDataError struct {
	Operation string
	Needed    int
	Got       int
	Unit      string
}

// Error returns the error message string.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need at least %d %s, got %d", e.Operation, e.Needed, e.Unit, e.Got)
}

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(operation string, needed, got int, unit string) error {
	return &InsufficientDataError{Operation: operation, Needed: needed, Got: got, Unit: unit}
}

// InsufficientTrainingDataError reports that a training set was too small or
// degenerate even after the synthetic fallback was considered.
type InsufficientTrainingDataError struct {
	Message string
}

// Error returns the error message string.
func (e *InsufficientTrainingDataError) Error() string {
	return e.Message
}

// NewInsufficientTrainingDataErrorf creates a new InsufficientTrainingDataError
// with a formatted message.
func NewInsufficientTrainingDataErrorf(format string, args ...interface{}) error {
	return &InsufficientTrainingDataError{Message: fmt.Sprintf(format, args...)}
}

// ComputationTimeoutError reports that a computation exceeded its deadline.
// The in-flight work is cancelled cooperatively, not killed.
type ComputationTimeoutError struct {
	Operation string
	Timeout   time.Duration
}

// Error returns the error message string.
func (e *ComputationTimeoutError) Error() string {
	return fmt.Sprintf("%s: computation exceeded %s deadline", e.Operation, e.Timeout)
}

// NewComputationTimeoutError creates a new ComputationTimeoutError.
func NewComputationTimeoutError(operation string, timeout time.Duration) error {
	return &ComputationTimeoutError{Operation: operation, Timeout: timeout}
}

// DataIntegrityError reports malformed input, e.g. a zero frequency that
// would make division-based features undefined.
type DataIntegrityError struct {
	Message string
}

// Error returns the error message string.
func (e *DataIntegrityError) Error() string {
	return e.Message
}

// NewDataIntegrityErrorf creates a new DataIntegrityError with a formatted
// message.
func NewDataIntegrityErrorf(format string, args ...interface{}) error {
	return &DataIntegrityError{Message: fmt.Sprintf(format, args...)}
}

// ModelNotTrainedError reports a prediction attempted without a trained
// model set. The predictor remediates this transparently by training, but
// the condition stays observable for diagnostics.
type ModelNotTrainedError struct {
	Message string
}

// Error returns the error message string.
func (e *ModelNotTrainedError) Error() string {
	return e.Message
}

// NewModelNotTrainedError creates a new ModelNotTrainedError.
func NewModelNotTrainedError(message string) error {
	return &ModelNotTrainedError{Message: message}
}

// IsInsufficientData reports whether err is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}

// IsComputationTimeout reports whether err is a ComputationTimeoutError.
func IsComputationTimeout(err error) bool {
	var target *ComputationTimeoutError
	return errors.As(err, &target)
}

// IsDataIntegrity reports whether err is a DataIntegrityError.
func IsDataIntegrity(err error) bool {
	var target *DataIntegrityError
	return errors.As(err, &target)
}

// IsInsufficientTrainingData reports whether err is an
// InsufficientTrainingDataError.
func IsInsufficientTrainingData(err error) bool {
	var target *InsufficientTrainingDataError
	return errors.As(err, &target)
}

// IsModelNotTrained reports whether err is a ModelNotTrainedError.
func IsModelNotTrained(err error) bool {
	var target *ModelNotTrainedError
	return errors.As(err, &target)
}
