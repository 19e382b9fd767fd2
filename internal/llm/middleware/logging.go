package llm

import (
	"context"

	"github.com/sirupsen/logrus"

	llmclient "restack/internal/llm/client"
)

// WithLogging logs request size and errors through logrus. Provide a custom
// entry or nil to use the standard logger.
func WithLogging(entry *logrus.Entry) Middleware {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &logging{next: next, log: entry}
	}
}

type logging struct {
	next llmclient.LLMClient
	log  *logrus.Entry
}

func (l *logging) Name() string                { return l.next.Name() }
func (l *logging) Close() error                { return l.next.Close() }
func (l *logging) CountTokens(text string) int { return l.next.CountTokens(text) }
func (l *logging) TokenCapacity() int          { return l.next.TokenCapacity() }

func (l *logging) GenerateText(ctx context.Context, prompt string) (string, error) {
	l.log.WithFields(logrus.Fields{
		"model":        l.next.Name(),
		"prompt_bytes": len(prompt),
	}).Debug("llm request")
	out, err := l.next.GenerateText(ctx, prompt)
	if err != nil {
		l.log.WithField("model", l.next.Name()).WithError(err).Warn("llm request failed")
	}
	return out, err
}
