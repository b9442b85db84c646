// Package email implements an SMTP-based email notifier
package email

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/newthinker/quantbench/internal/notifier"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	send     sendFunc
}

// New creates a new Email notifier. Auth is skipped when username is empty.
func New(host string, port int, username, password, from string, to []string) (*Email, error) {
	if host == "" || from == "" || len(to) == 0 {
		return nil, fmt.Errorf("email: host, from, and to are required")
	}
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}, nil
}

func (e *Email) Name() string { return "email" }

// Notify mails the event as an HTML summary. The SMTP exchange itself is not
// interruptible; ctx only stops the caller from waiting on it.
func (e *Email) Notify(ctx context.Context, event notifier.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	msg := e.message(subject(event), formatEventHTML(event))

	done := make(chan error, 1)
	go func() {
		done <- e.sendEmail(msg)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("email: %w", ctx.Err())
	}
}

func subject(event notifier.Event) string {
	if event.Type == notifier.EventRunFailed {
		return fmt.Sprintf("quantbench: %s %s failed", event.Symbol, event.Strategy)
	}
	return fmt.Sprintf("quantbench: %s %s %+.2f%% (%s)", event.Symbol, event.Strategy, event.TotalReturn, event.Verdict)
}

func formatEventHTML(event notifier.Event) string {
	color := "#28a745" // green for a profitable run
	if event.Type == notifier.EventRunFailed || event.TotalReturn < 0 {
		color = "#dc3545"
	}

	var sb strings.Builder
	sb.WriteString("<html><body>")
	fmt.Fprintf(&sb, `<h3 style="color: %s;">%s - %s</h3>`, color, html.EscapeString(event.Symbol), html.EscapeString(event.Strategy))
	if event.Timeframe != "" {
		fmt.Fprintf(&sb, "<p><strong>Timeframe:</strong> %s</p>", html.EscapeString(event.Timeframe))
	}
	if event.Scenario != "" {
		fmt.Fprintf(&sb, "<p><strong>Scenario:</strong> %s</p>", html.EscapeString(event.Scenario))
	}
	if event.Type == notifier.EventRunFailed {
		fmt.Fprintf(&sb, "<p><strong>Error:</strong> %s (%s)</p>", html.EscapeString(event.Error), event.ErrorCode)
	} else {
		fmt.Fprintf(&sb, "<p><strong>Return:</strong> %.2f%% vs buy &amp; hold %.2f%%</p>", event.TotalReturn, event.Benchmark)
		fmt.Fprintf(&sb, "<p><strong>Sharpe:</strong> %.2f</p>", event.Sharpe)
		fmt.Fprintf(&sb, "<p><strong>Max drawdown:</strong> %.2f%%</p>", event.MaxDrawdown)
		fmt.Fprintf(&sb, "<p><strong>Verdict:</strong> %s</p>", html.EscapeString(event.Verdict))
	}
	if event.RunID != "" {
		fmt.Fprintf(&sb, "<p><small>run %s</small></p>", event.RunID)
	}
	fmt.Fprintf(&sb, "<p><small>%s</small></p>", event.OccurredAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("</body></html>")
	return sb.String()
}

func (e *Email) message(subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		body,
	))
}

func (e *Email) sendEmail(msg []byte) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	if err := e.send(addr, auth, e.from, e.to, msg); err != nil {
		return fmt.Errorf("email: send to %s: %w", addr, err)
	}
	return nil
}
