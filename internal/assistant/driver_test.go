package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeAPI struct {
	statuses    []RunStatus
	polls       int
	created     []MessageCreate
	newest      []*Message
	runErr      error
	messageErr  error
	listErr     error
	getRunErr   error
	lastRunArgs [2]string
}

func (f *fakeAPI) CreateMessage(ctx context.Context, cfg MessageCreate) (*Message, error) {
	if f.messageErr != nil {
		return nil, f.messageErr
	}
	f.created = append(f.created, cfg)
	return &Message{ID: "msg_user", ThreadID: cfg.ThreadID, Role: cfg.Role}, nil
}

func (f *fakeAPI) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	f.lastRunArgs = [2]string{threadID, assistantID}
	return &Run{ID: "run_1", ThreadID: threadID, AssistantID: assistantID, Status: f.nextStatus()}, nil
}

func (f *fakeAPI) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	if f.getRunErr != nil {
		return nil, f.getRunErr
	}
	return &Run{ID: runID, ThreadID: threadID, Status: f.nextStatus()}, nil
}

func (f *fakeAPI) ListMessages(ctx context.Context, threadID string, limit int) ([]*Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.newest, nil
}

func (f *fakeAPI) nextStatus() RunStatus {
	if f.polls >= len(f.statuses) {
		return f.statuses[len(f.statuses)-1]
	}
	s := f.statuses[f.polls]
	f.polls++
	return s
}

func newTestDriver(t *testing.T, api API) *Driver {
	t.Helper()
	d, err := NewDriver(DriverOptions{
		API:          api,
		PollInterval: time.Millisecond,
		RunTimeout:   time.Second,
	})
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	return d
}

func TestGenerateResponseCompletedRun(t *testing.T) {
	t.Parallel()

	reply := &Message{ID: "msg_reply", ThreadID: "th_1", Role: RoleAssistant, Content: []ContentPart{TextPart{Value: "hi"}}}
	api := &fakeAPI{
		statuses: []RunStatus{RunQueued, RunInProgress, RunCompleted},
		newest:   []*Message{reply},
	}
	d := newTestDriver(t, api)

	out := d.GenerateResponse(context.Background(), "th_1", "asst_1", MessageCreate{ThreadID: "th_1", Content: "alice: hello"})
	if out.Status != StatusOK {
		t.Fatalf("status mismatch: got %v want StatusOK (%s)", out.Status, out.StatusText)
	}
	if out.Message != reply {
		t.Fatalf("message mismatch: got %+v", out.Message)
	}
	if len(api.created) != 1 || api.created[0].Content != "alice: hello" {
		t.Fatalf("created messages mismatch: %+v", api.created)
	}
	if api.lastRunArgs != [2]string{"th_1", "asst_1"} {
		t.Fatalf("run args mismatch: %v", api.lastRunArgs)
	}
}

func TestGenerateResponseCancelledRunIsBenign(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{statuses: []RunStatus{RunQueued, RunCancelled}}
	d := newTestDriver(t, api)

	out := d.GenerateResponse(context.Background(), "th_1", "asst_1", MessageCreate{ThreadID: "th_1"})
	if out.Status != StatusOK {
		t.Fatalf("status mismatch: got %v want StatusOK", out.Status)
	}
	if out.Message != nil {
		t.Fatalf("message mismatch: got %+v want nil", out.Message)
	}
	if !strings.Contains(out.StatusText, "cancelled") {
		t.Fatalf("status text mismatch: got %q", out.StatusText)
	}
}

func TestGenerateResponseFailedRun(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{statuses: []RunStatus{RunInProgress, RunFailed}}
	d := newTestDriver(t, api)

	out := d.GenerateResponse(context.Background(), "th_1", "asst_1", MessageCreate{ThreadID: "th_1"})
	if out.Status != StatusError {
		t.Fatalf("status mismatch: got %v want StatusError", out.Status)
	}
	if !strings.Contains(out.StatusText, "failed") {
		t.Fatalf("status text mismatch: got %q", out.StatusText)
	}
}

func TestGenerateResponseExpiredRun(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{statuses: []RunStatus{RunExpired}}
	d := newTestDriver(t, api)

	out := d.GenerateResponse(context.Background(), "th_1", "asst_1", MessageCreate{ThreadID: "th_1"})
	if out.Status != StatusError {
		t.Fatalf("status mismatch: got %v want StatusError", out.Status)
	}
	if !strings.Contains(out.StatusText, "expired") {
		t.Fatalf("status text mismatch: got %q", out.StatusText)
	}
}

func TestGenerateResponseUnexpectedLastMessageRole(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		statuses: []RunStatus{RunCompleted},
		newest:   []*Message{{ID: "msg_user", Role: RoleUser}},
	}
	d := newTestDriver(t, api)

	out := d.GenerateResponse(context.Background(), "th_1", "asst_1", MessageCreate{ThreadID: "th_1"})
	if out.Status != StatusError {
		t.Fatalf("status mismatch: got %v want StatusError", out.Status)
	}
	if out.StatusText != "No response from assistant" {
		t.Fatalf("status text mismatch: got %q", out.StatusText)
	}
}

func TestGenerateResponseThreadMismatchIsError(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{statuses: []RunStatus{RunCompleted}}
	d := newTestDriver(t, api)

	out := d.GenerateResponse(context.Background(), "th_1", "asst_1", MessageCreate{ThreadID: "th_other"})
	if out.Status != StatusError {
		t.Fatalf("status mismatch: got %v want StatusError", out.Status)
	}
	if len(api.created) != 0 {
		t.Fatalf("no message should be uploaded on contract violation, got %d", len(api.created))
	}
}

func TestGenerateResponsePollTimeout(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{statuses: []RunStatus{RunInProgress}}
	d, err := NewDriver(DriverOptions{
		API:          api,
		PollInterval: time.Millisecond,
		RunTimeout:   20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}

	out := d.GenerateResponse(context.Background(), "th_1", "asst_1", MessageCreate{ThreadID: "th_1"})
	if out.Status != StatusError {
		t.Fatalf("status mismatch: got %v want StatusError", out.Status)
	}
	if !strings.Contains(out.StatusText, "timed out") {
		t.Fatalf("status text mismatch: got %q", out.StatusText)
	}
}

func TestGenerateResponseTransportErrorNeverPropagates(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		statuses:   []RunStatus{RunCompleted},
		messageErr: fmt.Errorf("connection reset"),
	}
	d := newTestDriver(t, api)

	out := d.GenerateResponse(context.Background(), "th_1", "asst_1", MessageCreate{ThreadID: "th_1"})
	if out.Status != StatusError {
		t.Fatalf("status mismatch: got %v want StatusError", out.Status)
	}
	if !strings.Contains(out.StatusText, "connection reset") {
		t.Fatalf("status text mismatch: got %q", out.StatusText)
	}
}
