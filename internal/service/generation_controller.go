package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/makeasinger/moviegen/internal/logging"
	"github.com/makeasinger/moviegen/internal/metrics"
	"github.com/makeasinger/moviegen/internal/model"
	"github.com/makeasinger/moviegen/pkg/tracer"
)

// Completer sends one completion request and returns the model's text.
type Completer interface {
	ChatCompletion(ctx context.Context, req model.ChatCompletionRequest) (string, error)
}

// TransportError wraps any failure to obtain a usable completion.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "completion request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClassifyError maps a generation error to its kind.
func ClassifyError(err error) model.ErrorKind {
	if err == nil {
		return model.ErrorKindNone
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return model.ErrorKindSchema
	}
	return model.ErrorKindTransport
}

// GenerationController owns one GenerationState and drives it through
// request/response cycles. It is safe for concurrent use.
//
// Each accepted submit takes a new sequence number. Only the result carrying the
// latest number is applied; older results (superseded by a newer submit or
// detached by Reset) are dropped without a notification.
type GenerationController struct {
	builder   *RequestBuilder
	completer Completer
	notifier  Notifier
	observer  func(model.GenerationState)
	now       func() time.Time

	mu    sync.Mutex
	state model.GenerationState
	seq   uint64

	inflight sync.WaitGroup
}

// NewGenerationController creates a controller in the idle state.
func NewGenerationController(builder *RequestBuilder, completer Completer, notifier Notifier) *GenerationController {
	if notifier == nil {
		notifier = MultiNotifier(nil)
	}
	return &GenerationController{
		builder:   builder,
		completer: completer,
		notifier:  notifier,
		now:       time.Now,
		state:     model.IdleState(""),
	}
}

// OnStateChange registers fn to receive every new state. fn runs with the
// controller locked and must not call back into it.
func (c *GenerationController) OnStateChange(fn func(model.GenerationState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// State returns a snapshot of the current state.
func (c *GenerationController) State() model.GenerationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.state)
}

// Generate runs one full cycle and blocks until it settles.
// A blank prompt notifies and returns without any network call.
func (c *GenerationController) Generate(ctx context.Context, prompt string) model.GenerationState {
	seq, req, ok := c.begin(ctx, prompt)
	if !ok {
		return c.State()
	}
	c.inflight.Add(1)
	c.run(ctx, seq, prompt, req)
	return c.State()
}

// Submit starts a cycle and returns immediately with the pending state.
// The call outlives ctx cancellation; it is detached, never aborted.
func (c *GenerationController) Submit(ctx context.Context, prompt string) model.GenerationState {
	seq, req, ok := c.begin(ctx, prompt)
	if !ok {
		return c.State()
	}
	pending := c.State()

	c.inflight.Add(1)
	go c.run(context.WithoutCancel(ctx), seq, prompt, req)

	return pending
}

// Reset returns to the initial state, clearing prompt and concept.
// An in-flight call keeps running but its result is discarded.
func (c *GenerationController) Reset(ctx context.Context) model.GenerationState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == model.PhasePending {
		logging.FromContext(ctx).V(logging.DEBUG).Info("reset detaches in-flight generation", "seq", c.seq)
	}
	c.seq++
	c.transitionLocked(model.IdleState(""))
	return snapshot(c.state)
}

// Wait blocks until every started call has settled.
func (c *GenerationController) Wait() {
	c.inflight.Wait()
}

func (c *GenerationController) begin(ctx context.Context, prompt string) (uint64, model.ChatCompletionRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(prompt) == "" {
		logging.FromContext(ctx).V(logging.DEBUG).Info("rejecting blank prompt", "phase", c.state.Phase)
		metrics.RecordValidationFailure()
		if c.state.Editable() {
			c.transitionLocked(model.IdleState(prompt))
		}
		c.notifyLocked(model.NoticePromptRequired)
		return 0, model.ChatCompletionRequest{}, false
	}

	c.seq++
	c.transitionLocked(model.PendingState(prompt))
	return c.seq, c.builder.Build(prompt), true
}

func (c *GenerationController) run(ctx context.Context, seq uint64, prompt string, req model.ChatCompletionRequest) {
	defer c.inflight.Done()

	ctx, span := tracer.Start(ctx, "movie.generate")
	defer span.End()
	span.SetAttributes(attribute.Int64("generation.seq", int64(seq)))

	logger := logging.FromContext(ctx).WithValues("seq", seq)
	logger.V(logging.INFO).Info("issuing generation", "model", req.Model, "promptChars", len(prompt))

	start := c.now()
	metrics.GenerationStarted()

	var concept *model.MovieConcept
	content, err := c.completer.ChatCompletion(ctx, req)
	if err != nil {
		err = &TransportError{Err: err}
	} else {
		concept, err = ParseConcept(content)
	}

	kind := ClassifyError(err)
	applied := c.settle(ctx, seq, prompt, concept, kind, err)

	outcome := outcomeFor(kind)
	if !applied {
		outcome = metrics.OutcomeDiscarded
	}
	metrics.GenerationFinished(outcome, c.now().Sub(start))

	span.SetAttributes(attribute.String("generation.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
	}
}

// settle applies a result if it is still the latest cycle.
func (c *GenerationController) settle(ctx context.Context, seq uint64, prompt string, concept *model.MovieConcept, kind model.ErrorKind, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := logging.FromContext(ctx).WithValues("seq", seq)
	if seq != c.seq {
		logger.V(logging.DEBUG).Info("discarding stale generation result", "latest", c.seq, "kind", kind)
		return false
	}

	switch kind {
	case model.ErrorKindNone:
		logger.V(logging.INFO).Info("generation succeeded", "movieName", concept.MovieName)
		c.transitionLocked(model.ReadyState(prompt, *concept))
		c.notifyLocked(model.NoticeGenerated)
	case model.ErrorKindSchema:
		logger.Error(err, "failed to parse generated movie")
		c.transitionLocked(model.FailedState(prompt, kind))
		c.notifyLocked(model.NoticeSchemaFailure)
	default:
		logger.Error(err, "error generating movie")
		c.transitionLocked(model.FailedState(prompt, model.ErrorKindTransport))
		c.notifyLocked(model.NoticeTransportFailure)
	}
	return true
}

func (c *GenerationController) transitionLocked(s model.GenerationState) {
	c.state = s
	if c.observer != nil {
		c.observer(snapshot(s))
	}
}

func (c *GenerationController) notifyLocked(n model.Notification) {
	n.At = c.now()
	c.notifier.Notify(n)
}

func snapshot(s model.GenerationState) model.GenerationState {
	if s.Concept != nil {
		concept := *s.Concept
		s.Concept = &concept
	}
	return s
}

func outcomeFor(kind model.ErrorKind) string {
	switch kind {
	case model.ErrorKindNone:
		return metrics.OutcomeSuccess
	case model.ErrorKindSchema:
		return metrics.OutcomeSchema
	default:
		return metrics.OutcomeTransport
	}
}
