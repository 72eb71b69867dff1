package infrastructure

import (
	"context"
	"strings"

	"nexus-commerce/internal/pkg/logger"

	"github.com/pkg/errors"
)

// LogMailer 把邮件写进结构化日志，本地联调时代替真实的 SMTP 网关。
type LogMailer struct {
	From string
}

func NewLogMailer(from string) *LogMailer {
	return &LogMailer{From: from}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !strings.Contains(to, "@") {
		return errors.Errorf("invalid recipient address %q", to)
	}
	logger.Ctx(ctx).Info().
		Str("from", m.From).
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(htmlBody)).
		Msg("📨 Email dispatched")
	return nil
}
