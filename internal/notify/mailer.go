// Package notify emails the end-of-run ingestion summary.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/david/scholarship-finder/internal/config"
	"github.com/david/scholarship-finder/internal/ingest"
	"github.com/david/scholarship-finder/internal/logger"
	"github.com/david/scholarship-finder/internal/models"
)

const Subject = "Daily Scholarship Ingestion Report"

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends run summaries over SMTP.
type Mailer struct {
	dialer sender
	from   string
	to     []string
	logger *zap.Logger
}

func NewMailer(cfg config.SMTPConfig, log *zap.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
		logger: logger.OrNop(log),
	}
}

var summaryTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"failed": func(s ingest.SourceStats) bool { return s.Status == models.ReportError },
}).Parse(`<h2>Scholarship ingestion run {{.RunID}}</h2>
<p>{{.StartedAt.Format "2006-01-02 15:04 MST"}} to {{.FinishedAt.Format "15:04 MST"}}</p>
<p><strong>{{.Processed}}</strong> processed, <strong>{{.Added}}</strong> added,
<strong>{{.Updated}}</strong> updated, <strong>{{.Flagged}}</strong> flagged,
<strong>{{.Failed}}</strong> failed sources.</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Source</th><th>Status</th><th>Processed</th><th>Added</th><th>Updated</th><th>Flagged</th><th>Error</th></tr>
{{range .Sources}}<tr{{if failed .}} style="color:#b00"{{end}}><td>{{.Source}}</td><td>{{.Status}}</td><td>{{.Processed}}</td><td>{{.Added}}</td><td>{{.Updated}}</td><td>{{.Flagged}}</td><td>{{.Error}}</td></tr>
{{end}}</table>
`))

// RenderSummary returns the HTML body of the summary email.
func RenderSummary(summary ingest.RunSummary) (string, error) {
	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, summary); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}

// SendSummary implements ingest.Notifier.
func (m *Mailer) SendSummary(ctx context.Context, summary ingest.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := RenderSummary(summary)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", Subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send summary email: %w", err)
	}
	m.logger.Info("summary email sent", zap.Strings("to", m.to), zap.String("run_id", summary.RunID.String()))
	return nil
}
