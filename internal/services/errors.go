package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

var (
	ErrTestNotFound           = errors.New("test not found")
	ErrQuestionNotFound       = errors.New("question not found")
	ErrCategoryNotFound       = errors.New("category not found")
	ErrScaleNotFound          = errors.New("scale not found")
	ErrResultNotFound         = errors.New("result not found")
	ErrGroupNotFound          = errors.New("group not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrUserNotFound           = errors.New("user not found")

	ErrTestNotPublished       = errors.New("test is not published")
	ErrTestArchived           = errors.New("test is archived")
	ErrResultAlreadyCompleted = errors.New("result already completed")
	ErrResultNotCompleted     = errors.New("result is not completed")
	ErrAttemptLimitExceeded   = errors.New("maximum attempts reached")
	ErrCategoryInUse          = errors.New("category is used by tests")
	ErrDuplicateCategory      = errors.New("category name already exists")
	ErrMemberExists           = errors.New("user is already a member of the group")
	ErrNoCandidates           = errors.New("no candidates to group")

	ErrValidationFailed        = errors.New("validation failed")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrBadRequest              = errors.New("bad request")
	ErrConflict                = errors.New("conflict")
	ErrAIUnavailable           = errors.New("ai recommendations unavailable")
)

type ValidationErrors = validator.ValidationErrors

// PermissionError describes a refused action on a resource.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	if e.ResourceID == 0 {
		return fmt.Sprintf("user %s cannot %s %s: %s", e.UserID, e.Action, e.Resource, e.Reason)
	}
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrForbidden || target == ErrInsufficientPermissions
}

// BusinessRuleError is returned when a request is well formed but breaks a domain rule.
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

func IsBusinessRuleError(err error) bool {
	var be *BusinessRuleError
	return errors.As(err, &be)
}

func IsValidationError(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve) || errors.Is(err, ErrValidationFailed)
}
