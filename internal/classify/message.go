package classify

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MatchRequest is published to the classifier. CorrelationID is the only key
// joining it to the MatchResult that eventually comes back.
type MatchRequest struct {
	CorrelationID       string   `json:"correlationId"`
	UserID              string   `json:"userId"`
	Labels              []string `json:"labels"`
	KnownCategoryLabels []string `json:"knownCategoryLabels"`
	Prompt              string   `json:"prompt"`
}

func (r MatchRequest) Validate() error {
	return validateIDs(r.CorrelationID, r.UserID)
}

// MatchResult is the classifier's verdict. LabelToCategory is only meaningful
// when Success is set, FailureReason only when it is not.
type MatchResult struct {
	CorrelationID   string            `json:"correlationId"`
	UserID          string            `json:"userId"`
	Success         bool              `json:"success"`
	LabelToCategory map[string]string `json:"labelToCategory,omitempty"`
	FailureReason   string            `json:"failureReason,omitempty"`
	Prompt          string            `json:"prompt,omitempty"`
}

func (r MatchResult) Validate() error {
	return validateIDs(r.CorrelationID, r.UserID)
}

// User parses the owning user id.
func (r MatchResult) User() (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(r.UserID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: user id %q: %w", ErrInvalidMessage, r.UserID, err)
	}

	return id, nil
}

// Reason returns the failure detail, never empty for a failed result.
func (r MatchResult) Reason() string {
	if reason := strings.TrimSpace(r.FailureReason); reason != "" {
		return reason
	}

	return "classifier reported failure without a reason"
}

// Succeeded builds the reply for req.
func Succeeded(req MatchRequest, matches map[string]string) MatchResult {
	if matches == nil {
		matches = map[string]string{}
	}

	return MatchResult{
		CorrelationID:   req.CorrelationID,
		UserID:          req.UserID,
		Success:         true,
		LabelToCategory: matches,
		Prompt:          req.Prompt,
	}
}

// Failed builds a failure reply for req.
func Failed(req MatchRequest, reason string) MatchResult {
	return MatchResult{
		CorrelationID: req.CorrelationID,
		UserID:        req.UserID,
		FailureReason: reason,
		Prompt:        req.Prompt,
	}
}

func validateIDs(correlationID, userID string) error {
	if strings.TrimSpace(correlationID) == "" {
		return fmt.Errorf("%w: correlation id is empty", ErrInvalidMessage)
	}

	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is empty", ErrInvalidMessage)
	}

	return nil
}
