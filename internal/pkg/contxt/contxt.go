// Package contxt builds the bounded contexts used for one-off jobs.
package contxt

import (
	"context"
	"os"
	"time"
)

// NoDeadlineEnv disables job deadlines, useful when stepping through a job
// in a debugger.
const NoDeadlineEnv = "CONTEXT_NO_DEADLINE"

// NewContext derives a context from parent that expires after timeout.
func NewContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if os.Getenv(NoDeadlineEnv) != "" {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
