package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/nurdwerks/jules-interface/internal/client"
)

// CommandError marks a rejected or timed-out command whose optimistic
// state has already been rolled back; the message is user-visible.
type CommandError struct {
	Op  string
	Err error
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s failed: %s", e.Op, userMessage(e.Err))
}

func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func userMessage(err error) string {
	if apiErr := client.AsAPIError(err); apiErr != nil {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "backend did not respond in time"
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
