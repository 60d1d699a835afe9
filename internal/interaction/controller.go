package interaction

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provis-io/provis/pkg/schema"
)

// pending is one parked step waiting for a human response.
type pending struct {
	req *schema.InteractionRequest
	ch  chan *schema.InteractionResponse
}

// defaultResolvedCap bounds the duplicate-detection history. Once a
// resolution is evicted, a late duplicate reports not-found like any
// unknown correlation id.
const defaultResolvedCap = 1024

// Controller owns the suspension and resumption of steps waiting for human
// input. Request parks the calling step goroutine on a per-correlation
// channel; Respond, arriving on any goroutine, resumes it. The controller is
// the only cross-goroutine entry point into a running session.
type Controller struct {
	mu             sync.Mutex
	waiting        map[string]*pending
	resolved       map[string]map[string]any
	resolvedOrder  []string
	resolvedCap    int
	defaultTimeout time.Duration
}

// NewController creates a Controller. defaultTimeout bounds requests that do
// not carry their own timeout.
func NewController(defaultTimeout time.Duration) *Controller {
	return &Controller{
		waiting:        make(map[string]*pending),
		resolved:       make(map[string]map[string]any),
		resolvedCap:    defaultResolvedCap,
		defaultTimeout: defaultTimeout,
	}
}

// Request registers req and parks until a matching Respond, the request
// timeout, or context cancellation. A missing correlation id is filled in.
// Timeout yields an interaction-timeout error; cancellation unwinds with a
// cancelled error. Either way the registration is withdrawn, so a response
// arriving afterwards is unmatched.
func (c *Controller) Request(ctx context.Context, req *schema.InteractionRequest) (*schema.InteractionResponse, error) {
	if req == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "interaction request is nil")
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	p := &pending{req: req, ch: make(chan *schema.InteractionResponse, 1)}

	c.mu.Lock()
	if _, exists := c.waiting[req.CorrelationID]; exists {
		c.mu.Unlock()
		return nil, schema.NewErrorf(schema.ErrCodeConflict,
			"correlation id %q already waiting", req.CorrelationID)
	}
	c.waiting[req.CorrelationID] = p
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-p.ch:
		return resp, nil
	case <-timer.C:
		c.withdraw(req.CorrelationID)
		return nil, schema.NewErrorf(schema.ErrCodeInteractionTimeout,
			"no response for %q within %s", req.CorrelationID, timeout).WithStep(req.StepID)
	case <-ctx.Done():
		c.withdraw(req.CorrelationID)
		return nil, schema.NewErrorf(schema.ErrCodeCancelled,
			"interaction %q cancelled", req.CorrelationID).WithCause(ctx.Err())
	}
}

// Respond resumes the step parked on correlationID with the payload. A
// duplicate response carrying the same payload is a no-op; a duplicate with
// a different payload is a conflict. An unknown correlation id is an error
// and affects no session.
func (c *Controller) Respond(correlationID string, payload map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, done := c.resolved[correlationID]; done {
		if reflect.DeepEqual(prev, payload) {
			return nil
		}
		return schema.NewErrorf(schema.ErrCodeConflict,
			"correlation id %q already resolved with a different payload", correlationID)
	}

	p, ok := c.waiting[correlationID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound,
			"no pending interaction for correlation id %q", correlationID)
	}

	delete(c.waiting, correlationID)
	c.resolved[correlationID] = payload
	c.resolvedOrder = append(c.resolvedOrder, correlationID)
	for len(c.resolvedOrder) > c.resolvedCap {
		oldest := c.resolvedOrder[0]
		c.resolvedOrder = c.resolvedOrder[1:]
		delete(c.resolved, oldest)
	}
	p.ch <- &schema.InteractionResponse{
		CorrelationID: correlationID,
		Payload:       payload,
		ReceivedAt:    time.Now(),
	}
	return nil
}

// Pending returns the currently parked requests.
func (c *Controller) Pending() []*schema.InteractionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*schema.InteractionRequest, 0, len(c.waiting))
	for _, p := range c.waiting {
		out = append(out, p.req)
	}
	return out
}

// withdraw removes a registration that timed out or was cancelled.
func (c *Controller) withdraw(correlationID string) {
	c.mu.Lock()
	delete(c.waiting, correlationID)
	c.mu.Unlock()
}
