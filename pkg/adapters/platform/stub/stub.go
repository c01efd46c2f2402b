package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

// ErrInjected is returned when failure injection is enabled
var ErrInjected = errors.New("stub platform: injected failure")

// Adapter is an in-process fake of the external content platform.
// Repeated calls with the same idempotency key return the same sync id.
type Adapter struct {
	mu     sync.Mutex
	calls  int
	fail   error
	synced map[string]string // idempotency key -> sync id
	logger *zap.Logger
}

// New creates a stub adapter
func New(logger *zap.Logger) *Adapter {
	return &Adapter{
		synced: make(map[string]string),
		logger: logger,
	}
}

// FailWith makes subsequent calls return err. A nil err restores success.
func (a *Adapter) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail = err
}

// Sync records the bundle and returns a generated sync id
func (a *Adapter) Sync(ctx context.Context, req ports.SyncRequest) (*ports.SyncResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.fail != nil {
		return nil, a.fail
	}
	if req.Bundle == nil {
		return nil, fmt.Errorf("stub platform: bundle is required")
	}

	if id, ok := a.synced[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return &ports.SyncResult{SyncID: id, Success: true}, nil
	}

	id := "emg_" + uuid.NewString()
	if req.IdempotencyKey != "" {
		a.synced[req.IdempotencyKey] = id
	}

	a.logger.Debug("bundle synced to stub platform",
		zap.String("content_id", req.Bundle.ContentID),
		zap.String("sync_id", id))

	return &ports.SyncResult{SyncID: id, Success: true}, nil
}

// Calls returns how many times Sync was invoked
func (a *Adapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *Adapter) Idempotent() bool { return true }

func (a *Adapter) Name() string { return "stub" }
