package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/policykit/auth"
	"github.com/jonwraymond/policykit/observe"
	"github.com/jonwraymond/policykit/policy"
	"github.com/jonwraymond/policykit/privacy"
	"github.com/jonwraymond/policykit/ratelimit"
)

// Stage names, recorded on rejection telemetry.
const (
	StagePreAuthRateLimit  = "pre_auth_rate_limit"
	StageAuthenticate      = "authenticate"
	StagePostAuthRateLimit = "post_auth_rate_limit"
	StageAuthorize         = "authorize"
	StageInvoke            = "invoke"
	StagePrivacyFilter     = "privacy_filter"
)

// Handler is the wrapped business handler, invoked exactly once per
// admitted call. Its failures propagate to the caller unmodified.
//
// Responses subject to declared field privacy rules must be returned as
// decoded message maps (map[string]any, nested messages as maps or []any);
// any other response shape is returned unfiltered with a logged warning.
type Handler func(ctx context.Context, req any) (any, error)

// Call identifies one inbound call and its transport metadata.
type Call struct {
	// Service and Method identify the resolved policy.
	Service string
	Method  string

	// Metadata is the transport metadata credentials are extracted from.
	Metadata map[string][]string

	// ClientIP is the caller's address, used for IP-keyed rate rules.
	ClientIP string
}

// Config assembles the pipeline's strategy components. Components are
// selected at construction time, keeping the pipeline statically
// composable and testable with fakes.
type Config struct {
	// Resolver supplies effective policies; required.
	Resolver *policy.Resolver

	// Authenticator validates credentials for REQUIRED methods. May be
	// nil when every registered method is PUBLIC; REQUIRED methods then
	// reject all callers.
	Authenticator auth.Authenticator

	// Authorizer evaluates access rules.
	// Default: auth.RuleSetAuthorizer
	Authorizer auth.Authorizer

	// Limiter evaluates rate rules.
	// Default: in-memory limiter
	Limiter *ratelimit.Limiter

	// Instruments carries tracing, metrics, and logging.
	// Default: noop
	Instruments observe.Instruments
}

// Pipeline evaluates declared policies around wrapped handlers. One
// execution per inbound call; executions run concurrently and share only
// the rate limiter's bucket table and the resolver's policy cache. No
// lock is held while the authenticator or the handler runs.
type Pipeline struct {
	resolver      *policy.Resolver
	authenticator auth.Authenticator
	authorizer    auth.Authorizer
	limiter       *ratelimit.Limiter
	instruments   observe.Instruments
}

// New creates a pipeline from cfg, applying defaults for optional
// components.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("pipeline: resolver is required")
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = auth.NewRuleSetAuthorizer()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewLimiter(nil)
	}
	if cfg.Instruments.Tracer == nil {
		cfg.Instruments = observe.NoopInstruments()
	}

	return &Pipeline{
		resolver:      cfg.Resolver,
		authenticator: cfg.Authenticator,
		authorizer:    cfg.Authorizer,
		limiter:       cfg.Limiter,
		instruments:   cfg.Instruments,
	}, nil
}

// Execute runs the full stage sequence for one call and returns the
// (possibly privacy-filtered) handler response. Privacy filtering applies
// only to responses returned as decoded message maps; see Handler.
func (p *Pipeline) Execute(ctx context.Context, call Call, req any, handler Handler) (any, error) {
	pol, err := p.resolver.Resolve(call.Service, call.Method)
	if err != nil {
		return nil, err
	}

	meta := observe.CallMeta{Service: call.Service, Method: call.Method}
	ctx, span := p.instruments.Tracer.StartSpan(ctx, meta)
	start := time.Now()

	resp, stage, err := p.run(ctx, call, pol, req, handler)

	p.instruments.Tracer.EndSpan(span, stage, err)
	p.instruments.Metrics.RecordEvaluation(ctx, meta, stage, time.Since(start), err)
	p.logOutcome(ctx, meta, stage, err)

	return resp, err
}

// run executes the stages and reports which one rejected the call, if any.
func (p *Pipeline) run(ctx context.Context, call Call, pol *policy.EffectivePolicy, req any, handler Handler) (any, string, error) {
	scope := call.Service + "/" + call.Method

	// Pre-auth rate limit: rules keyed without an identity requirement.
	if rule := pol.Rate; rule != nil && !rule.Key.RequiresIdentity() {
		decision, err := p.limiter.Allow(ctx, ratelimit.CheckRequest{
			Scope:    scope,
			Rule:     rule,
			ClientIP: call.ClientIP,
		})
		if err != nil {
			return nil, StagePreAuthRateLimit, err
		}
		if !decision.Admit {
			return nil, StagePreAuthRateLimit, &ratelimit.LimitError{Key: rule.Key.String(), RetryAfter: decision.RetryAfter}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	// Authenticate, only when the effective mode requires it.
	var identity *auth.Identity
	if pol.Auth == policy.AuthRequired {
		id, err := p.authenticate(ctx, call)
		if err != nil {
			return nil, StageAuthenticate, err
		}
		identity = id
		ctx = auth.WithIdentity(ctx, identity)
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	// Post-auth rate limit: identity-keyed rules, bypass roles now apply.
	if rule := pol.Rate; rule != nil && rule.Key.RequiresIdentity() {
		decision, err := p.limiter.Allow(ctx, ratelimit.CheckRequest{
			Scope:    scope,
			Rule:     rule,
			Identity: identity,
			ClientIP: call.ClientIP,
		})
		if err != nil {
			return nil, StagePostAuthRateLimit, err
		}
		if !decision.Admit {
			return nil, StagePostAuthRateLimit, &ratelimit.LimitError{Key: rule.Key.String(), RetryAfter: decision.RetryAfter}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	// Authorize: absence of an access rule is a vacuous pass.
	if !pol.Access.Empty() {
		if err := p.authorizer.Authorize(ctx, identity, pol.Access); err != nil {
			return nil, StageAuthorize, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	// Invoke the wrapped handler exactly once; failures pass through.
	resp, err := handler(ctx, req)
	if err != nil {
		return nil, StageInvoke, err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	// Privacy filter runs on every successful handler output that is a
	// decoded message map. Declared field rules cannot be enforced on any
	// other shape, so that case is surfaced rather than passed silently.
	if pol.Response != "" && len(pol.Fields) > 0 {
		if msg, ok := resp.(map[string]any); ok {
			resp = privacy.Apply(pol.Response, pol.Fields, msg, identity)
		} else {
			p.instruments.Logger.WithCall(observe.CallMeta{Service: call.Service, Method: call.Method}).Warn(ctx,
				"privacy rules declared but response is not a decoded map; returned unfiltered",
				observe.Field{Key: "response_type", Value: fmt.Sprintf("%T", resp)})
		}
	}

	return resp, "", nil
}

// authenticate maps every authentication failure, including internal
// authenticator errors, to an unauthenticated rejection.
func (p *Pipeline) authenticate(ctx context.Context, call Call) (*auth.Identity, error) {
	if p.authenticator == nil {
		return nil, fmt.Errorf("%w: no authenticator configured", auth.ErrUnauthenticated)
	}

	result, err := p.authenticator.Authenticate(ctx, &auth.Request{
		Metadata: call.Metadata,
		Service:  call.Service,
		Method:   call.Method,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrUnauthenticated, err)
	}
	if !result.Authenticated {
		cause := result.Err
		if cause == nil {
			cause = auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", auth.ErrUnauthenticated, cause)
	}
	return result.Identity, nil
}

func (p *Pipeline) logOutcome(ctx context.Context, meta observe.CallMeta, stage string, err error) {
	logger := p.instruments.Logger.WithCall(meta)
	if err == nil {
		logger.Debug(ctx, "call admitted")
		return
	}
	fields := []observe.Field{{Key: "error", Value: err.Error()}}
	if stage != "" {
		fields = append(fields, observe.Field{Key: "stage", Value: stage})
	}
	if stage == StageInvoke {
		// Handler failures are the application's, not the policy's.
		logger.Debug(ctx, "handler failed", fields...)
		return
	}
	logger.Warn(ctx, "call rejected", fields...)
}
