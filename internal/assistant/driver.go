package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// API is the slice of the remote service the driver needs. *Client implements
// it; tests substitute fakes.
type API interface {
	CreateMessage(ctx context.Context, cfg MessageCreate) (*Message, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]*Message, error)
}

type Status int

const (
	StatusOK Status = iota
	StatusError
)

// Outcome is the result of driving one run to a terminal state. StatusOK with
// a nil Message is a benign stop (for example a cancelled run); StatusText
// explains any outcome that carries no message.
type Outcome struct {
	Status     Status
	Message    *Message
	StatusText string
}

type DriverOptions struct {
	API    API
	Logger *slog.Logger

	// PollInterval is the fixed delay between run-state fetches.
	PollInterval time.Duration

	// RunTimeout bounds the whole poll loop; a run still not terminal when it
	// expires becomes an error outcome.
	RunTimeout time.Duration
}

// Driver uploads a message, runs the assistant over the thread, and polls the
// run to a terminal state.
type Driver struct {
	api          API
	logger       *slog.Logger
	pollInterval time.Duration
	runTimeout   time.Duration
}

func NewDriver(opts DriverOptions) (*Driver, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("api is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 1 * time.Second
	}
	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	return &Driver{
		api:          opts.API,
		logger:       logger,
		pollInterval: pollInterval,
		runTimeout:   runTimeout,
	}, nil
}

// GenerateResponse appends newMessage to the remote thread, starts a run for
// assistantID, and polls it to a terminal state. It never returns a Go error:
// every failure is folded into an error outcome so the caller has exactly one
// path to handle.
func (d *Driver) GenerateResponse(ctx context.Context, threadID, assistantID string, newMessage MessageCreate) Outcome {
	if newMessage.ThreadID != threadID {
		// Contract violation by the caller, not a remote failure.
		d.logger.Error("run_thread_mismatch", "thread_id", threadID, "message_thread_id", newMessage.ThreadID)
		return errorOutcome(fmt.Sprintf("message thread %s does not match run thread %s", newMessage.ThreadID, threadID))
	}

	if _, err := d.api.CreateMessage(ctx, newMessage); err != nil {
		d.logger.Warn("run_message_create_error", "thread_id", threadID, "error", err.Error())
		return errorOutcome(err.Error())
	}

	run, err := d.api.CreateRun(ctx, threadID, assistantID)
	if err != nil {
		d.logger.Warn("run_create_error", "thread_id", threadID, "assistant_id", assistantID, "error", err.Error())
		return errorOutcome(err.Error())
	}

	deadline := time.Now().Add(d.runTimeout)
	for !run.Status.Terminal() {
		if time.Now().After(deadline) {
			d.logger.Warn("run_poll_timeout", "thread_id", threadID, "run_id", run.ID, "status", string(run.Status), "timeout", d.runTimeout.String())
			return errorOutcome(fmt.Sprintf("Run timed out after %s", d.runTimeout))
		}
		if err := sleepWithContext(ctx, d.pollInterval); err != nil {
			return errorOutcome(err.Error())
		}
		run, err = d.api.GetRun(ctx, threadID, run.ID)
		if err != nil {
			d.logger.Warn("run_poll_error", "thread_id", threadID, "error", err.Error())
			return errorOutcome(err.Error())
		}
	}

	switch run.Status {
	case RunCancelled:
		// A user-initiated stop, not an error.
		d.logger.Info("run_cancelled", "thread_id", threadID, "run_id", run.ID)
		return Outcome{Status: StatusOK, StatusText: "Run cancelled"}
	case RunExpired, RunFailed:
		d.logger.Warn("run_terminal_error", "thread_id", threadID, "run_id", run.ID, "status", string(run.Status))
		return errorOutcome(fmt.Sprintf("Run %s", run.Status))
	}

	messages, err := d.api.ListMessages(ctx, threadID, 1)
	if err != nil {
		d.logger.Warn("run_messages_list_error", "thread_id", threadID, "error", err.Error())
		return errorOutcome(err.Error())
	}
	if len(messages) == 0 || messages[0] == nil || messages[0].Role != RoleAssistant {
		// The newest message should be the assistant's reply; anything else
		// means another writer got there first.
		d.logger.Warn("run_no_assistant_reply", "thread_id", threadID, "run_id", run.ID)
		return errorOutcome("No response from assistant")
	}

	return Outcome{Status: StatusOK, Message: messages[0]}
}

func errorOutcome(text string) Outcome {
	return Outcome{Status: StatusError, StatusText: text}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
