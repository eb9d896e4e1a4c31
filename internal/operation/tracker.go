// Package operation tracks the lifecycle of the one image update operation
// a client works on at a time.
package operation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"imageupdater/internal/client"
	"imageupdater/internal/models"
)

type State int

const (
	NoOperation State = iota
	Pending
	Processing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NoOperation:
		return "none"
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

func (s State) rank() int {
	switch s {
	case Pending:
		return 1
	case Processing:
		return 2
	case Completed, Failed:
		return 3
	}
	return 0
}

// StateOf maps a server status onto a tracker state.
func StateOf(status models.OperationStatus) (State, error) {
	switch status {
	case models.OperationStatusPending:
		return Pending, nil
	case models.OperationStatusProcessing:
		return Processing, nil
	case models.OperationStatusCompleted:
		return Completed, nil
	case models.OperationStatusFailed:
		return Failed, nil
	}
	return NoOperation, fmt.Errorf("unknown operation status %q", status)
}

type Action int

const (
	ActionCreate Action = iota
	ActionDownload
	ActionUpload
	ActionProcess
	ActionReset
)

func (a Action) String() string {
	return [...]string{"create", "download", "upload", "process", "reset"}[a]
}

var (
	ErrActionNotAllowed   = errors.New("action not allowed in current state")
	ErrNoUpload           = errors.New("upload a CSV before processing")
	ErrBackwardTransition = errors.New("operation status moved backwards")
	ErrBusy               = errors.New("another request is in flight")
)

// API is the subset of the client the tracker drives.
type API interface {
	CreateImageUpdateOperation(ctx context.Context, collectionID string, productIDs []string) (*models.ImageUpdateOperation, error)
	GetImageUpdateOperation(ctx context.Context, operationID string) (*models.ImageUpdateOperation, error)
	DownloadImageUpdateCSV(ctx context.Context, operationID string) ([]byte, error)
	UploadImageUpdateCSV(ctx context.Context, operationID string, file *client.CSVFile) (*models.ProcessResult, error)
	ProcessImageUpdates(ctx context.Context, operationID string) (*models.ProcessResult, error)
}

// Tracker holds at most one operation. Network calls run without the lock;
// a busy flag rejects overlapping actions instead.
type Tracker struct {
	api API

	mu       sync.RWMutex
	state    State
	op       *models.ImageUpdateOperation
	uploaded bool
	message  string
	busy     bool
}

func NewTracker(api API) *Tracker {
	return &Tracker{api: api}
}

func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Operation returns a copy of the tracked record, or nil.
func (t *Tracker) Operation() *models.ImageUpdateOperation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.op == nil {
		return nil
	}
	op := *t.op
	return &op
}

func (t *Tracker) Uploaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.uploaded
}

// Message is the advisory text of the last process call.
func (t *Tracker) Message() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.message
}

func (t *Tracker) Busy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.busy
}

// Allowed reports whether action may run now. selected is the current
// selection size and only matters for create.
func (t *Tracker) Allowed(action Action, selected int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowed(action, selected) == nil
}

func (t *Tracker) allowed(action Action, selected int) error {
	if t.busy {
		return ErrBusy
	}
	switch action {
	case ActionCreate:
		if t.state != NoOperation || selected == 0 {
			return ErrActionNotAllowed
		}
	case ActionDownload, ActionUpload:
		if t.state != Pending {
			return ErrActionNotAllowed
		}
	case ActionProcess:
		if t.state != Pending {
			return ErrActionNotAllowed
		}
		if !t.uploaded {
			return ErrNoUpload
		}
	case ActionReset:
		if t.state != NoOperation && !t.state.Terminal() {
			return ErrActionNotAllowed
		}
	}
	return nil
}

// begin checks the action and marks the tracker busy. It returns the
// operation id to act on.
func (t *Tracker) begin(action Action, selected int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.allowed(action, selected); err != nil {
		return "", fmt.Errorf("%s: %w", action, err)
	}
	t.busy = true
	if t.op == nil {
		return "", nil
	}
	return t.op.OperationID, nil
}

func (t *Tracker) end() {
	t.mu.Lock()
	t.busy = false
	t.mu.Unlock()
}

func (t *Tracker) Create(ctx context.Context, collectionID string, productIDs []string) (*models.ImageUpdateOperation, error) {
	if len(productIDs) == 0 {
		return nil, client.ErrEmptySelection
	}
	if _, err := t.begin(ActionCreate, len(productIDs)); err != nil {
		return nil, err
	}
	defer t.end()

	op, err := t.api.CreateImageUpdateOperation(ctx, collectionID, productIDs)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.op = op
	t.state = Pending
	t.uploaded = false
	t.message = ""
	return t.copyLocked(), nil
}

func (t *Tracker) Download(ctx context.Context) ([]byte, error) {
	id, err := t.begin(ActionDownload, 0)
	if err != nil {
		return nil, err
	}
	defer t.end()
	return t.api.DownloadImageUpdateCSV(ctx, id)
}

func (t *Tracker) Upload(ctx context.Context, file *client.CSVFile) (*models.ProcessResult, error) {
	if file == nil {
		return nil, client.ErrNotCSV
	}
	id, err := t.begin(ActionUpload, 0)
	if err != nil {
		return nil, err
	}
	defer t.end()

	result, err := t.api.UploadImageUpdateCSV(ctx, id, file)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.uploaded = true
	t.mu.Unlock()
	return result, nil
}

// Process starts applying the uploaded plan and re-fetches the operation.
// The re-fetched record decides the new state.
func (t *Tracker) Process(ctx context.Context) (*models.ProcessResult, error) {
	id, err := t.begin(ActionProcess, 0)
	if err != nil {
		return nil, err
	}
	defer t.end()

	result, err := t.api.ProcessImageUpdates(ctx, id)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.message = result.Message
	t.mu.Unlock()

	op, err := t.api.GetImageUpdateOperation(ctx, id)
	if err != nil {
		return result, fmt.Errorf("refresh after process: %w", err)
	}
	if err := t.apply(op); err != nil {
		return result, err
	}
	return result, nil
}

// Refresh re-fetches the tracked operation.
func (t *Tracker) Refresh(ctx context.Context) (*models.ImageUpdateOperation, error) {
	t.mu.RLock()
	if t.op == nil {
		t.mu.RUnlock()
		return nil, ErrActionNotAllowed
	}
	id := t.op.OperationID
	t.mu.RUnlock()

	op, err := t.api.GetImageUpdateOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.apply(op); err != nil {
		return nil, err
	}
	return t.Operation(), nil
}

// Wait polls until the operation reaches a terminal state or ctx ends.
func (t *Tracker) Wait(ctx context.Context, interval time.Duration) (*models.ImageUpdateOperation, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		op, err := t.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		if op.Status.Terminal() {
			return op, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Reset forgets a finished operation so a new one can be created.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.allowed(ActionReset, 0); err != nil {
		return fmt.Errorf("%s: %w", ActionReset, err)
	}
	t.state = NoOperation
	t.op = nil
	t.uploaded = false
	t.message = ""
	return nil
}

// Resume adopts an operation persisted by an earlier run. uploaded follows
// the server's record.
func (t *Tracker) Resume(op *models.ImageUpdateOperation) error {
	state, err := StateOf(op.Status)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != NoOperation {
		return fmt.Errorf("resume: %w", ErrActionNotAllowed)
	}
	cp := *op
	t.op = &cp
	t.state = state
	t.uploaded = op.CSVUploaded
	return nil
}

func (t *Tracker) apply(op *models.ImageUpdateOperation) error {
	next, err := StateOf(op.Status)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.op == nil || t.op.OperationID != op.OperationID {
		return fmt.Errorf("refresh returned operation %s: %w", op.OperationID, ErrActionNotAllowed)
	}
	if next.rank() < t.state.rank() || (t.state.Terminal() && next != t.state) {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, t.state, next)
	}
	cp := *op
	t.op = &cp
	t.state = next
	return nil
}

func (t *Tracker) copyLocked() *models.ImageUpdateOperation {
	op := *t.op
	return &op
}
