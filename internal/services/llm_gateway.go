package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/llm"
	mongorepo "github.com/yoockh/xiaomian/internal/repositories/mongo"
	"github.com/yoockh/xiaomian/internal/utils"
)

// LLMGateway is the single entry point for model calls. Every call is bounded
// by the gateway timeout, logged, and audited when an audit store is set.
type LLMGateway interface {
	Complete(ctx context.Context, op models.LLMOperation, req llm.Request) (string, error)
}

type llmGateway struct {
	provider llm.Provider
	calls    mongorepo.LLMCallRepository
	log      *logrus.Logger
	timeout  time.Duration
}

// NewLLMGateway wraps provider. calls may be nil to disable auditing.
func NewLLMGateway(provider llm.Provider, calls mongorepo.LLMCallRepository, log *logrus.Logger, timeout time.Duration) LLMGateway {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &llmGateway{provider: provider, calls: calls, log: log, timeout: timeout}
}

const auditAnswerLimit = 4000

func (g *llmGateway) Complete(ctx context.Context, op models.LLMOperation, req llm.Request) (string, error) {
	const fn = "LLMGateway.Complete"

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	answer, err := g.provider.Complete(callCtx, req)
	latency := time.Since(start)

	entry := g.log.WithFields(logrus.Fields{
		"operation":  op,
		"provider":   g.provider.Name(),
		"model":      g.provider.Model(),
		"latency_ms": latency.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("llm call failed")
	} else {
		entry.Debug("llm call")
	}

	g.audit(ctx, op, req, answer, err, latency)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", utils.E(utils.CodeTimeout, fn, "language model timed out", err)
		}
		return "", utils.E(utils.CodeUnavailable, fn, "language model unavailable", err)
	}
	return answer, nil
}

func (g *llmGateway) audit(ctx context.Context, op models.LLMOperation, req llm.Request, answer string, callErr error, latency time.Duration) {
	if g.calls == nil {
		return
	}

	doc := &models.LLMCall{
		Operation:    op,
		Provider:     g.provider.Name(),
		Model:        g.provider.Model(),
		SystemPrompt: req.System,
		UserPrompt:   req.LastUser(),
		Answer:       truncateRunes(answer, auditAnswerLimit),
		Status:       models.LLMCallOK,
		LatencyMS:    latency.Milliseconds(),
	}
	if callErr != nil {
		doc.Status = models.LLMCallError
		doc.Error = callErr.Error()
	}

	// the request may already be cancelled; the audit row should still land
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := g.calls.Insert(auditCtx, doc); err != nil {
		g.log.WithError(err).WithField("operation", op).Warn("llm audit insert failed")
	}
}

// askJSON calls the gateway and decodes a JSON answer, returning fallback
// (tagged) when the call fails or the answer does not parse.
func askJSON[T any](ctx context.Context, gw LLMGateway, log *logrus.Logger, op models.LLMOperation, req llm.Request, fallback T) llm.Decoded[T] {
	raw, err := gw.Complete(ctx, op, req)
	if err != nil {
		return llm.Decoded[T]{Value: fallback, Outcome: llm.OutcomeFallback, Err: err}
	}
	d := llm.DecodeJSON(raw, fallback)
	if d.Fallback() {
		log.WithError(d.Err).WithField("operation", op).Warn("llm answer not valid json, using fallback")
	}
	return d
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
