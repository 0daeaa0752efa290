package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/internal/domain"
	"github.com/yourusername/sharefetch-go/internal/validate"
)

// ExecutorOptions tunes one executor instance for the whole invocation.
type ExecutorOptions struct {
	// BrowserFallback enables methods the adapter marks OptIn.
	BrowserFallback bool

	// ItemTimeout is the hard wall-clock budget per item, covering every
	// method in the chain. Zero means the caller's context governs alone.
	ItemTimeout time.Duration

	// AcceptNonImage widens the validator gate to video and audio payloads.
	// HTML remains a failure regardless.
	AcceptNonImage bool

	// MaxRetries bounds re-attempts of a method whose transient network
	// failure the adapter designated retryable.
	MaxRetries int

	// RetryDelay is the base of the exponential backoff between retries.
	RetryDelay time.Duration
}

// StrategyExecutor drives one adapter's fallback chain against one resolved
// item: attempt methods strictly in order, gate every attempt through the
// content validator, stop at the first validated success.
type StrategyExecutor struct {
	opts   ExecutorOptions
	pacer  domain.Pacer
	debug  domain.DebugSink
	logger *zap.Logger
}

// NewStrategyExecutor creates a strategy executor. pacer and debug may be nil.
func NewStrategyExecutor(opts ExecutorOptions, pacer domain.Pacer, debug domain.DebugSink, logger *zap.Logger) *StrategyExecutor {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &StrategyExecutor{
		opts:   opts,
		pacer:  pacer,
		debug:  debug,
		logger: logger,
	}
}

// Execute walks the chain for one item. It returns the first accepted result
// tagged with its tier, or the terminal error envelope once every method is
// exhausted. Soft failures are folded into the most specific reason observed;
// an attempt classified as HTML is never surfaced as success.
func (e *StrategyExecutor) Execute(ctx context.Context, item domain.ResolvedItem, methods []domain.AcquireMethod) (*domain.AcquireResult, *domain.Envelope) {
	if len(methods) == 0 {
		return nil, domain.NewEnvelope(domain.ErrInternal, "adapter declared no acquisition methods", "")
	}

	if e.opts.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.ItemTimeout)
		defer cancel()
	}

	var best *domain.Envelope
	attempted := 0

	for i, method := range methods {
		tier := i + 1

		if method.OptIn && !e.opts.BrowserFallback {
			e.logger.Debug("Skipping opt-in method",
				zap.String("method", method.Name),
				zap.Int("tier", tier))
			continue
		}
		attempted++

		if err := ctx.Err(); err != nil {
			env := domain.NewEnvelope(domain.ErrNetwork, "item budget exhausted: "+err.Error(), "")
			if env.MoreSpecificThan(best) {
				best = env
			}
			break
		}

		result, env := e.attempt(ctx, item, method, tier)
		if result != nil {
			e.logger.Info("Method accepted",
				zap.Int("item", item.ItemIndex),
				zap.String("method", method.Name),
				zap.Int("tier", tier),
				zap.Int("bytes", result.ByteLength),
				zap.Bool("preview", result.IsPreview))
			return result, nil
		}

		e.logger.Warn("Method failed, advancing chain",
			zap.Int("item", item.ItemIndex),
			zap.String("method", method.Name),
			zap.Int("tier", tier),
			zap.String("code", string(env.Code)),
			zap.String("reason", env.Message))

		if env.MoreSpecificThan(best) {
			best = env
		}
	}

	if attempted == 0 {
		return nil, domain.NewEnvelope(domain.ErrCaptureFailure,
			"every method for this platform is disabled",
			"pass --browser-fallback to enable the browser-assisted method")
	}

	return nil, terminalEnvelope(best)
}

// attempt runs a single method and validates its output. A nil result means
// a soft failure described by the returned envelope.
func (e *StrategyExecutor) attempt(ctx context.Context, item domain.ResolvedItem, method domain.AcquireMethod, tier int) (*domain.AcquireResult, *domain.Envelope) {
	if method.NetworkBound && e.pacer != nil {
		if err := e.pacer.Wait(ctx); err != nil {
			return nil, domain.NewEnvelope(domain.ErrNetwork, "rate limiter interrupted: "+err.Error(), "")
		}
	}

	raw, err := e.execute(ctx, item, method)
	if err != nil {
		return nil, classifyExecError(err)
	}
	if raw == nil || len(raw.Bytes) == 0 {
		return nil, domain.NewEnvelope(domain.ErrCaptureFailure,
			fmt.Sprintf("method %q produced no bytes", method.Name), "")
	}

	verdict := validate.Classify(raw.Bytes, raw.DeclaredContentType)
	if verdict.IsHTML {
		// A 200 with an HTML body is an auth wall or error page, never a
		// success, regardless of status code.
		e.writeDebug(item.ItemIndex, tier, method.Name+".html", raw.Bytes)
		return nil, domain.NewEnvelope(verdict.Reason,
			fmt.Sprintf("method %q returned an HTML page (status %d)", method.Name, raw.ResponseStatus),
			"the share may require signing in; verify the link opens without an account")
	}
	accepted := verdict.Accepted
	if !accepted && e.opts.AcceptNonImage &&
		verdict.Reason == domain.ErrUnsupportedType && isMediaMIME(verdict.MIME) {
		accepted = true
	}
	if !accepted {
		e.writeDebug(item.ItemIndex, tier, method.Name+".bin", raw.Bytes)
		return nil, domain.NewEnvelope(verdict.Reason,
			fmt.Sprintf("method %q returned %s, not a recognized image", method.Name, verdict.MIME), "")
	}

	if env := belowQuality(method, raw, verdict); env != nil {
		return nil, env
	}

	hint := item.FilenameHint
	if raw.FilenameHint != "" {
		hint = raw.FilenameHint
	}

	return &domain.AcquireResult{
		Bytes:        raw.Bytes,
		MIME:         verdict.MIME,
		FilenameHint: hint,
		Platform:     item.Platform,
		Method:       method.Name,
		Tier:         tier,
		WidthPx:      verdict.WidthPx,
		HeightPx:     verdict.HeightPx,
		ByteLength:   len(raw.Bytes),
		IsPreview:    method.Preview,
	}, nil
}

// execute invokes the method, retrying transient network failures with
// exponential backoff when the adapter designated the method retryable.
func (e *StrategyExecutor) execute(ctx context.Context, item domain.ResolvedItem, method domain.AcquireMethod) (*domain.RawAttempt, error) {
	if !method.Retryable || e.opts.MaxRetries <= 0 {
		return method.Execute(ctx, item)
	}

	var raw *domain.RawAttempt
	backoff := retry.WithMaxRetries(uint64(e.opts.MaxRetries), retry.NewExponential(e.opts.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var execErr error
		raw, execErr = method.Execute(ctx, item)
		if execErr == nil {
			return nil
		}
		if classifyExecError(execErr).Code == domain.ErrNetwork && ctx.Err() == nil {
			return retry.RetryableError(execErr)
		}
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// belowQuality applies the method's minimum thresholds. A failed threshold
// is a soft failure: the attempt is a real image, just a known preview
// rendition the next tier may beat.
func belowQuality(method domain.AcquireMethod, raw *domain.RawAttempt, verdict validate.Verdict) *domain.Envelope {
	if method.MinBytes > 0 && len(raw.Bytes) < method.MinBytes {
		return domain.NewEnvelope(domain.ErrCaptureFailure,
			fmt.Sprintf("method %q returned %d bytes, below the %d byte floor", method.Name, len(raw.Bytes), method.MinBytes), "")
	}
	// Pixel thresholds apply only where dimensions were determinable.
	if verdict.WidthPx > 0 && verdict.HeightPx > 0 {
		if (method.MinWidth > 0 && verdict.WidthPx < method.MinWidth) ||
			(method.MinHeight > 0 && verdict.HeightPx < method.MinHeight) {
			return domain.NewEnvelope(domain.ErrCaptureFailure,
				fmt.Sprintf("method %q returned %dx%d, below the %dx%d floor",
					method.Name, verdict.WidthPx, verdict.HeightPx, method.MinWidth, method.MinHeight), "")
		}
	}
	return nil
}

// isMediaMIME reports whether the sniffed type is a video or audio payload.
func isMediaMIME(mime string) bool {
	return strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "audio/")
}

// classifyExecError maps a method execution error to an envelope. Adapters
// signal specific conditions by returning *domain.Envelope directly.
func classifyExecError(err error) *domain.Envelope {
	var env *domain.Envelope
	if errors.As(err, &env) {
		return env
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewEnvelope(domain.ErrNetwork, "method timed out: "+err.Error(), "")
	}
	return domain.NewEnvelope(domain.ErrCaptureFailure, err.Error(), "")
}

// terminalEnvelope converts the most specific folded soft failure into the
// error surfaced to the caller. Generic reasons collapse to CAPTURE_FAILURE;
// HTML variants surface as AUTH_REQUIRED.
func terminalEnvelope(best *domain.Envelope) *domain.Envelope {
	if best == nil {
		return domain.NewEnvelope(domain.ErrCaptureFailure, "all acquisition methods exhausted", "")
	}
	surfaced := best.Code.Surface()
	if surfaced == best.Code {
		return best
	}
	return domain.NewEnvelope(surfaced, best.Message, best.Remediation)
}

func (e *StrategyExecutor) writeDebug(itemIndex, tier int, name string, data []byte) {
	if e.debug == nil {
		return
	}
	e.debug.WriteAttempt(itemIndex, tier, name, data)
}
