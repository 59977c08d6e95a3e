// Package guard shapes outbound backend calls: payload size check, sliding
// window admission and error normalization, always applied in that order.
package guard

import (
	"context"

	"go.uber.org/zap"
)

// Operation names one guardable unit of work and the group it belongs to.
type Operation struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

// Policy is the per-operation guard configuration.
type Policy struct {
	QuotaPerMinute int     `mapstructure:"quota_per_minute" json:"quota_per_minute" yaml:"quota_per_minute"`
	MaxPayloadMB   float64 `mapstructure:"max_payload_mb" json:"max_payload_mb" yaml:"max_payload_mb"`
}

// Handler performs an operation with named arguments.
type Handler[T any] func(ctx context.Context, args Args) (T, error)

// Middleware decorates a Handler.
type Middleware[T any] func(Handler[T]) Handler[T]

// Observer receives guard decisions, typically to emit metrics.
type Observer interface {
	Rejected(op Operation, failure *Failure)
	Normalized(op Operation, failure *Failure)
}

// Guard carries the shared collaborators used by every wrapped operation.
type Guard struct {
	Limiter     *RateLimiter
	Logger      Logger
	Observer    Observer
	GroupPrefix string
}

// Option configures a Guard.
type Option func(*Guard)

// WithLimiter replaces the shared process-wide limiter.
func WithLimiter(limiter *RateLimiter) Option {
	return func(g *Guard) { g.Limiter = limiter }
}

// WithLogger sets the logger for rejections and normalized failures.
func WithLogger(logger Logger) Option {
	return func(g *Guard) { g.Logger = logger }
}

// WithObserver sets the decision observer.
func WithObserver(observer Observer) Option {
	return func(g *Guard) { g.Observer = observer }
}

// WithGroupPrefix overrides DefaultGroupPrefix.
func WithGroupPrefix(prefix string) Option {
	return func(g *Guard) { g.GroupPrefix = prefix }
}

// New creates a Guard backed by the shared limiter unless overridden.
func New(opts ...Option) *Guard {
	g := &Guard{
		Limiter:     Shared(),
		GroupPrefix: DefaultGroupPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Wrap composes the payload check, admission and normalization around
// backend. Rejections from the first two steps are returned as-is and are
// never passed through normalization.
func Wrap[T any](g *Guard, op Operation, policy Policy, backend Handler[T]) Handler[T] {
	return Chain(backend,
		PayloadCheck[T](g, op, policy),
		Admission[T](g, op, policy),
		Normalization[T](g, op),
	)
}

// Chain applies middlewares so the first one runs outermost.
func Chain[T any](h Handler[T], middlewares ...Middleware[T]) Handler[T] {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			h = middlewares[i](h)
		}
	}
	return h
}

// PayloadCheck rejects oversized string arguments before next runs.
func PayloadCheck[T any](g *Guard, op Operation, policy Policy) Middleware[T] {
	return func(next Handler[T]) Handler[T] {
		return func(ctx context.Context, args Args) (T, error) {
			if err := CheckPayload(args, policy.MaxPayloadMB); err != nil {
				failure := err.(*Failure)
				failure.Operation = op.Name
				failure.Group = op.Group
				g.logger().Warn("Payload too large",
					zap.String("operation", op.Name),
					zap.String("argument", failure.Argument),
					zap.Float64("max_payload_mb", policy.MaxPayloadMB))
				g.rejected(op, failure)
				var zero T
				return zero, failure
			}
			return next(ctx, args)
		}
	}
}

// Admission consults the limiter, keyed by the bare operation name.
func Admission[T any](g *Guard, op Operation, policy Policy) Middleware[T] {
	return func(next Handler[T]) Handler[T] {
		return func(ctx context.Context, args Args) (T, error) {
			if err := g.limiter().Admit(op.Name, policy.QuotaPerMinute); err != nil {
				failure := err.(*Failure)
				failure.Group = op.Group
				g.logger().Warn("Rate limit exceeded",
					zap.String("operation", op.Name),
					zap.Int("quota_per_minute", policy.QuotaPerMinute))
				g.rejected(op, failure)
				var zero T
				return zero, failure
			}
			return next(ctx, args)
		}
	}
}

// Normalization translates any failure of next into a *Failure. A bare
// *Failure from a nested guard is returned without being logged or counted again.
func Normalization[T any](g *Guard, op Operation) Middleware[T] {
	return func(next Handler[T]) Handler[T] {
		return func(ctx context.Context, args Args) (T, error) {
			result, err := next(ctx, args)
			if err == nil {
				return result, nil
			}
			var zero T
			if existing, ok := err.(*Failure); ok && existing != nil {
				return zero, existing
			}
			failure := Normalize(op, g.prefix(), err)
			logNormalized(g.logger(), failure)
			if g != nil && g.Observer != nil {
				g.Observer.Normalized(op, failure)
			}
			return zero, failure
		}
	}
}

func (g *Guard) limiter() *RateLimiter {
	if g == nil || g.Limiter == nil {
		return Shared()
	}
	return g.Limiter
}

func (g *Guard) logger() Logger {
	if g == nil || g.Logger == nil {
		return nopLogger{}
	}
	return g.Logger
}

func (g *Guard) prefix() string {
	if g == nil || g.GroupPrefix == "" {
		return DefaultGroupPrefix
	}
	return g.GroupPrefix
}

func (g *Guard) rejected(op Operation, failure *Failure) {
	if g != nil && g.Observer != nil {
		g.Observer.Rejected(op, failure)
	}
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...zap.Field)  {}
func (nopLogger) Error(string, ...zap.Field) {}
