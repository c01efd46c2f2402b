package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

// maxErrorBody bounds how much of an error response is kept in the job error
const maxErrorBody = 512

// Config for the HTTP platform adapter
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Adapter posts bundles to the platform's bundle endpoint.
// The platform deduplicates requests by the Idempotency-Key header.
type Adapter struct {
	client   *http.Client
	endpoint string
	apiKey   string
	logger   *zap.Logger
}

type syncResponse struct {
	SyncID string `json:"sync_id"`
	ID     string `json:"id"`
}

// New creates an HTTP adapter. A nil client gets a client with cfg.Timeout.
func New(cfg Config, client *http.Client, logger *zap.Logger) (*Adapter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sync endpoint is required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Adapter{
		client:   client,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		logger:   logger,
	}, nil
}

// Sync posts the bundle and returns the platform's id for it
func (a *Adapter) Sync(ctx context.Context, req ports.SyncRequest) (*ports.SyncResult, error) {
	if req.Bundle == nil {
		return nil, fmt.Errorf("bundle is required")
	}

	body, err := req.Bundle.Marshal()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/bundles", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create sync request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("platform rejected bundle: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode platform response: %w", err)
	}

	id := out.SyncID
	if id == "" {
		id = out.ID
	}
	if id == "" {
		return nil, fmt.Errorf("platform response has no sync id")
	}

	a.logger.Debug("bundle synced",
		zap.String("content_id", req.Bundle.ContentID),
		zap.String("sync_id", id),
		zap.Int("status", resp.StatusCode))

	return &ports.SyncResult{SyncID: id, Success: true}, nil
}

func (a *Adapter) Idempotent() bool { return true }

func (a *Adapter) Name() string { return "http" }
