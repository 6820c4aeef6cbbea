package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	"sync"
	texttemplate "text/template"

	"docindex-platform/internal/logger"
	"docindex-platform/models"
)

const (
	AlertFailed    = "failed"
	AlertDegraded  = "completed_with_errors"
	alertErrorRows = 10
)

type reindexAlertData struct {
	Level          string
	Phase          models.Phase
	NewResourceID  string
	TotalDocuments int
	ProcessedCount int
	ErrorCount     int
	Error          string
	Errors         []string
}

var (
	alertSubject = texttemplate.Must(texttemplate.New("subject").Parse(
		`{{if eq .Level "failed"}}URGENT: Reindex failed{{else}}Reindex completed with {{.ErrorCount}} errors{{end}}`))

	alertText = texttemplate.Must(texttemplate.New("text").Parse(`Reindex status: {{.Phase}}
Resource: {{.NewResourceID}}
Processed: {{.ProcessedCount}}/{{.TotalDocuments}}
Errors: {{.ErrorCount}}
{{if .Error}}
Cause: {{.Error}}
{{end}}{{range .Errors}}
- {{.}}{{end}}
`))

	alertHTML = htmltemplate.Must(htmltemplate.New("html").Parse(`<h2>Reindex {{.Phase}}</h2>
<p>Resource: <code>{{.NewResourceID}}</code></p>
<p>Processed {{.ProcessedCount}} of {{.TotalDocuments}} documents, {{.ErrorCount}} errors.</p>
{{if .Error}}<p><strong>Cause:</strong> {{.Error}}</p>{{end}}
{{if .Errors}}<ul>{{range .Errors}}<li>{{.}}</li>{{end}}</ul>{{end}}`))
)

// ReindexAlerter mails admins when a run fails or completes with errors. It
// is a progress publisher so the saga needs no knowledge of it. Each run
// alerts at most once per level.
type ReindexAlerter struct {
	sender     EmailSender
	recipients []string
	log        *slog.Logger

	mu   sync.Mutex
	sent map[string]bool
}

func NewReindexAlerter(sender EmailSender, recipients []string, log *slog.Logger) *ReindexAlerter {
	return &ReindexAlerter{
		sender:     sender,
		recipients: recipients,
		log:        logger.Or(log).With("component", "reindex_alerts"),
		sent:       make(map[string]bool),
	}
}

func alertLevel(snap models.ProgressSnapshot) string {
	switch {
	case snap.Phase == models.PhaseFailed:
		return AlertFailed
	case snap.Phase == models.PhaseCompleted && snap.ErrorCount > 0:
		return AlertDegraded
	}
	return ""
}

func (a *ReindexAlerter) Publish(_ context.Context, snap models.ProgressSnapshot) error {
	level := alertLevel(snap)
	if level == "" {
		return nil
	}

	key := level + ":" + snap.NewResourceID
	a.mu.Lock()
	if a.sent[key] {
		a.mu.Unlock()
		return nil
	}
	a.sent[key] = true
	a.mu.Unlock()

	subject, htmlBody, textBody, err := renderAlert(level, snap)
	if err != nil {
		return fmt.Errorf("failed to generate alert content: %w", err)
	}
	if err := a.sender.SendEmail(a.recipients, subject, htmlBody, textBody); err != nil {
		a.mu.Lock()
		delete(a.sent, key)
		a.mu.Unlock()
		return fmt.Errorf("send reindex alert: %w", err)
	}
	a.log.Info("reindex alert sent", "level", level, "resource", snap.NewResourceID, "recipients", len(a.recipients))
	return nil
}

func renderAlert(level string, snap models.ProgressSnapshot) (subject, htmlBody, textBody string, err error) {
	data := reindexAlertData{
		Level:          level,
		Phase:          snap.Phase,
		NewResourceID:  snap.NewResourceID,
		TotalDocuments: snap.TotalDocuments,
		ProcessedCount: snap.ProcessedCount,
		ErrorCount:     snap.ErrorCount,
		Error:          snap.Error,
		Errors:         snap.ErrorMessages,
	}
	if len(data.Errors) > alertErrorRows {
		data.Errors = data.Errors[len(data.Errors)-alertErrorRows:]
	}

	var subjectBuf, htmlBuf, textBuf bytes.Buffer
	if err := alertSubject.Execute(&subjectBuf, data); err != nil {
		return "", "", "", err
	}
	if err := alertHTML.Execute(&htmlBuf, data); err != nil {
		return "", "", "", err
	}
	if err := alertText.Execute(&textBuf, data); err != nil {
		return "", "", "", err
	}
	return strings.TrimSpace(subjectBuf.String()), htmlBuf.String(), textBuf.String(), nil
}
