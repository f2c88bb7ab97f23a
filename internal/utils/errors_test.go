package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInsufficientDataError tests the message format and type detection.
func TestInsufficientDataError(t *testing.T) {
	err := NewInsufficientDataError("trend forecast", 3, 1, "orders")
	assert.Equal(t, "trend forecast: need at least 3 orders, got 1", err.Error())
	assert.True(t, IsInsufficientData(err))
	assert.False(t, IsComputationTimeout(err))

	wrapped := fmt.Errorf("running pipeline: %w", err)
	assert.True(t, IsInsufficientData(wrapped))
}

// TestComputationTimeoutError tests the message and the errors.As helper.
func TestComputationTimeoutError(t *testing.T) {
	err := NewComputationTimeoutError("trend forecast", 30*time.Second)
	assert.Equal(t, "trend forecast: computation exceeded 30s deadline", err.Error())
	assert.True(t, IsComputationTimeout(err))

	var target *ComputationTimeoutError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, 30*time.Second, target.Timeout)
}

// TestDataIntegrityError tests formatting and detection.
func TestDataIntegrityError(t *testing.T) {
	err := NewDataIntegrityErrorf("customer %s: frequency must be >= 1, got %v", "c1", 0.0)
	assert.Equal(t, "customer c1: frequency must be >= 1, got 0", err.Error())
	assert.True(t, IsDataIntegrity(err))
	assert.False(t, IsInsufficientData(err))
}

// TestInsufficientTrainingDataError tests formatting and detection.
func TestInsufficientTrainingDataError(t *testing.T) {
	err := NewInsufficientTrainingDataErrorf("training requires at least 2 rows, got %d", 1)
	assert.Equal(t, "training requires at least 2 rows, got 1", err.Error())
	assert.True(t, IsInsufficientTrainingData(err))
	assert.False(t, IsInsufficientData(err))
}

// TestModelNotTrainedError tests detection through wrapping.
func TestModelNotTrainedError(t *testing.T) {
	err := NewModelNotTrainedError("predict")
	assert.Equal(t, "predict", err.Error())
	assert.True(t, IsModelNotTrained(err))
	assert.True(t, IsModelNotTrained(fmt.Errorf("scoring: %w", err)))
}

// TestHelpersRejectUnrelatedErrors tests that the detectors do not match
// plain errors.
func TestHelpersRejectUnrelatedErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.False(t, IsInsufficientData(plain))
	assert.False(t, IsComputationTimeout(plain))
	assert.False(t, IsDataIntegrity(plain))
	assert.False(t, IsInsufficientTrainingData(plain))
	assert.False(t, IsModelNotTrained(plain))
}
