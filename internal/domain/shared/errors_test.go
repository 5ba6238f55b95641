package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndSentinel(t *testing.T) {
	err := WrapError("query", "GetStudentAchievements", ErrNotFound, "lookup failed", ErrStudentNotFound)

	assert.True(t, errors.Is(err, ErrStudentNotFound))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.False(t, errors.Is(err, ErrAchievementNotFound))
}

func TestDomainError_WrappedSentinelAsKind(t *testing.T) {
	err := WrapError("achievement", "Evaluate", ErrUnknownCriteriaType, "no evaluator", fmt.Errorf("criteria type %q", "x"))

	assert.True(t, errors.Is(err, ErrUnknownCriteriaType))
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), `criteria type "x"`)
}

func TestDomainError_Message(t *testing.T) {
	assert.Equal(t, "student.Find: student not found", ErrStudentNotFound.Error())
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsAlreadyExists(ErrAchievementAlreadyUnlocked))
	assert.True(t, IsExternalService(ErrEvaluationFailure))
	assert.True(t, IsRetryable(fmt.Errorf("pool: %w", ErrServiceUnavailable)))
	assert.False(t, IsRetryable(ErrStudentNotFound))
}
