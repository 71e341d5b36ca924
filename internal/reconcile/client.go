package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/mauv0809/matchplay-trip/internal/matchplay"
	"github.com/mauv0809/matchplay-trip/internal/resilience"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
)

const maxErrorBody = 4 << 10

// Client submits queue batches to a reconciliation service.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
}

// Ensure Client implements the syncqueue.Remote interface.
var _ syncqueue.Remote = (*Client)(nil)

// NewClient creates a client for endpoint, e.g. https://reconciler.example.com/v1/sync.
// Deadlines come from the caller's context, one per attempt.
func NewClient(endpoint, token string) *Client {
	return &Client{
		httpClient: &http.Client{},
		endpoint:   endpoint,
		token:      token,
	}
}

// Submit posts one batch and maps the response to per-item outcomes. Transport
// failures, 5xx and 4xx responses come back as typed resilience errors.
func (c *Client) Submit(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
	req, outcomes, err := c.buildRequest(batch)
	if err != nil {
		return nil, err
	}
	if len(req.Events) == 0 {
		return outcomes, nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sync batch: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "matchplay-scorer/1.0")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	log.Debug("Submitting sync batch", "endpoint", c.endpoint, "batchID", req.BatchID, "scope", batch.Scope, "events", len(req.Events))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &resilience.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		log.Warn("Reconciler rejected sync batch", "batchID", req.BatchID, "status", resp.StatusCode, "error", err)
		return nil, err
	}

	var batchResp BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batchResp); err != nil {
		return nil, &resilience.ServerError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("undecodable response: %v", err)}
	}
	for _, r := range batchResp.Results {
		outcomes = append(outcomes, syncqueue.Outcome{
			ItemID:  r.ID,
			Synced:  r.Status == StatusSynced || r.Status == StatusDuplicate,
			Message: r.Message,
		})
	}
	log.Debug("Sync batch answered", "batchID", req.BatchID, "synced", batchResp.Synced, "failed", batchResp.Failed)
	return outcomes, nil
}

// buildRequest turns queue items into wire events. Items whose payload cannot be
// decoded are left out and reported as failed outcomes.
func (c *Client) buildRequest(batch syncqueue.Batch) (BatchRequest, []syncqueue.Outcome, error) {
	batchID, err := gonanoid.New()
	if err != nil {
		return BatchRequest{}, nil, fmt.Errorf("failed to generate batch id: %w", err)
	}
	req := BatchRequest{
		Scope:   Scope{TripID: batch.TripID, MatchID: batch.Scope},
		BatchID: batchID,
		Events:  make([]Event, 0, len(batch.Items)),
	}

	var outcomes []syncqueue.Outcome
	for _, item := range batch.Items {
		event, err := toEvent(item)
		if err != nil {
			log.Error("Undecodable sync item", "id", item.ID, "type", item.Type, "error", err)
			outcomes = append(outcomes, syncqueue.Outcome{ItemID: item.ID, Message: err.Error()})
			continue
		}
		req.Events = append(req.Events, event)
	}
	return req, outcomes, nil
}

func toEvent(item syncqueue.Item) (Event, error) {
	event := Event{ID: item.ID, Type: string(item.Type), Timestamp: item.CreatedAt}

	if item.Type == syncqueue.TypeScore {
		var result matchplay.HoleResult
		if err := item.Decode(&result); err != nil {
			return Event{}, fmt.Errorf("failed to decode score payload: %w", err)
		}
		data, err := json.Marshal(result)
		if err != nil {
			return Event{}, err
		}
		hole := result.HoleNumber
		event.HoleNumber = &hole
		event.Data = data
		event.Timestamp = result.Timestamp
		return event, nil
	}

	var payload any
	if err := item.Decode(&payload); err != nil {
		return Event{}, fmt.Errorf("failed to decode %s payload: %w", item.Type, err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", item.Type, err)
	}
	event.Data = data
	return event, nil
}

// statusError classifies a non-2xx response. Request timeouts and rate limiting
// are treated like server errors so they are retried.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return &resilience.ServerError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	default:
		return &resilience.ClientError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
}
