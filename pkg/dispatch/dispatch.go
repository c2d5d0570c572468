// Package dispatch orchestrates generation: admission, adapter invocation,
// accounting, and usage emission.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zen-systems/promptgate/pkg/adapter"
	"github.com/zen-systems/promptgate/pkg/admission"
	"github.com/zen-systems/promptgate/pkg/config"
	"github.com/zen-systems/promptgate/pkg/registry"
	"github.com/zen-systems/promptgate/pkg/usage"
)

// EndpointGenerate is the endpoint name recorded on usage records.
const EndpointGenerate = "generate"

// Caller is the identity the auth collaborator resolved. The core trusts
// the ID as the admission and billing key without re-validating it.
type Caller struct {
	ID     string
	Active bool
}

// ErrInactiveCaller is returned for callers the identity provider marked
// inactive.
var ErrInactiveCaller = errors.New("caller is inactive")

// AdmissionError reports a quota-exceeded rejection. It carries the full
// decision so callers can surface retry-after guidance. Rejections are
// expected events, not billable ones: no usage record is emitted.
type AdmissionError struct {
	Decision admission.Decision
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("rate limit exceeded: limit %d per %ds, resets at %s",
		e.Decision.Limit, e.Decision.WindowSeconds, e.Decision.ResetAt.Format(time.RFC3339))
}

// Result is the normalized generation outcome. Derived fields (total,
// latency, cost) are always computed here, never by an adapter, so
// accounting stays consistent across providers.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Model        string
	Provider     string
	LatencyMS    int64
	Cost         float64
}

// Resolver yields the process's resolved adapter. Satisfied by
// *registry.Registry.
type Resolver interface {
	Resolve() (adapter.Adapter, error)
	Provider() registry.Provider
}

// Orchestrator accepts normalized requests, enforces admission, invokes
// the resolved adapter, and emits usage records.
type Orchestrator struct {
	registry  Resolver
	admission admission.Controller
	sink      usage.Sink

	limit   int
	window  time.Duration
	rate    float64
	timeout time.Duration
}

// New creates an orchestrator. The token-cost rate is resolved once here,
// from the configured rate and the resolved provider.
func New(reg Resolver, ctrl admission.Controller, sink usage.Sink, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		registry:  reg,
		admission: ctrl,
		sink:      sink,
		limit:     cfg.RateLimit.Requests,
		window:    time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		rate:      cfg.Pricing.RateFor(string(reg.Provider())),
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Generate runs one generation for the caller. On admission denial it
// returns an AdmissionError and emits nothing; on success it returns the
// result and hands exactly one usage record to the sink. Backend failures
// propagate immediately and are never retried here: retry safety differs
// per backend, so retry policy belongs to the caller.
func (o *Orchestrator) Generate(ctx context.Context, caller Caller, req adapter.Request) (*Result, error) {
	if !caller.Active {
		return nil, ErrInactiveCaller
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	decision := o.admission.Check(caller.ID, o.limit, o.window)
	if !decision.Allowed {
		return nil, &AdmissionError{Decision: decision}
	}

	a, err := o.registry.Resolve()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	completion, err := o.complete(ctx, a, req)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	total := completion.InputTokens + completion.OutputTokens
	result := &Result{
		Text:         completion.Text,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		TotalTokens:  total,
		Model:        completion.Model,
		Provider:     a.Name(),
		LatencyMS:    latency,
		Cost:         float64(total) / 1000.0 * o.rate,
	}

	rec := usage.Record{
		ID:           usage.NewRecordID(),
		CallerID:     caller.ID,
		Endpoint:     EndpointGenerate,
		Provider:     result.Provider,
		Model:        result.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		TotalTokens:  result.TotalTokens,
		Cost:         result.Cost,
		LatencyMS:    result.LatencyMS,
		StatusCode:   200,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.sink.Write(ctx, rec); err != nil {
		// A storage failure never unwinds a successful generation.
		log.Printf("[dispatch] usage write failed for caller %s: %v", caller.ID, err)
	}

	return result, nil
}

// complete invokes the adapter, wrapped in the configured timeout. An
// exceeded timeout surfaces as a BackendError rather than a silent abandon;
// some backends cannot be safely interrupted once started.
func (o *Orchestrator) complete(ctx context.Context, a adapter.Adapter, req adapter.Request) (*adapter.Completion, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	completion, err := a.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &adapter.BackendError{
				Provider:  a.Name(),
				Temporary: true,
				Err:       fmt.Errorf("generation timed out after %s", o.timeout),
			}
		}
		return nil, err
	}
	return completion, nil
}

// ListModels returns the model descriptors of the resolved provider only.
func (o *Orchestrator) ListModels() ([]adapter.ModelInfo, error) {
	a, err := o.registry.Resolve()
	if err != nil {
		return nil, err
	}
	return a.Models(), nil
}
