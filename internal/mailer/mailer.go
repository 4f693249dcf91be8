// Package mailer sends plain-text run summaries after batch jobs. Silence
// from a cron job is indistinguishable from success, so every completed run
// reports what it did.
package mailer

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/adoralabs/dropwatch/internal/analysis"
	"github.com/adoralabs/dropwatch/internal/config"
	"github.com/adoralabs/dropwatch/internal/models"
)

type Mailer struct {
	cfg    config.EmailConfig
	logger *slog.Logger
}

// New returns nil when no sender is configured; callers treat a nil Mailer
// as "reporting disabled".
func New(cfg config.EmailConfig) *Mailer {
	if cfg.Sender == "" || cfg.Recipient == "" {
		return nil
	}
	return &Mailer{
		cfg:    cfg,
		logger: slog.Default().With("component", "mailer"),
	}
}

// BatchSummary is what a finished analysis run reports.
type BatchSummary struct {
	Processed    int
	Flagged      int
	Skipped      int
	ScrapeErrors int
	APIErrors    int
	Elapsed      string
	FlaggedSites []FlaggedSite
}

type FlaggedSite struct {
	Domain string
	Score  float64
	Reason string
}

// SendBatchSummary mails the analysis run report. Failures are logged and
// returned; the batch result itself is already persisted by then.
func (m *Mailer) SendBatchSummary(s BatchSummary) error {
	if m == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Batch analysis finished in %s\n\n", s.Elapsed)
	fmt.Fprintf(&b, "Processed:     %d\n", s.Processed)
	fmt.Fprintf(&b, "Flagged:       %d\n", s.Flagged)
	fmt.Fprintf(&b, "Skipped:       %d\n", s.Skipped)
	fmt.Fprintf(&b, "Scrape errors: %d\n", s.ScrapeErrors)
	fmt.Fprintf(&b, "API errors:    %d\n", s.APIErrors)

	if len(s.FlaggedSites) > 0 {
		b.WriteString("\nFlagged domains:\n")
		for _, f := range s.FlaggedSites {
			fmt.Fprintf(&b, "  %.2f  %s\n        %s\n", f.Score, f.Domain, f.Reason)
		}
	}

	subject := fmt.Sprintf("Dropwatch batch: %d processed, %d flagged", s.Processed, s.Flagged)
	return m.send(subject, b.String())
}

// SendPriceMatchSummary mails the price-match run report with the steepest
// markups first.
func (m *Mailer) SendPriceMatchSummary(attempted, matched int, records []models.PriceMatchRecord) error {
	if m == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Price match run: %d attempted, %d matched\n", attempted, matched)

	for _, r := range records {
		best := 0.0
		for _, match := range r.Matches {
			if match.PriceUSD > 0 && (best == 0 || match.PriceUSD < best) {
				best = match.PriceUSD
			}
		}
		if best == 0 {
			continue
		}
		markup := analysis.Markup(r.PriceILS, r.Matches)
		fmt.Fprintf(&b, "\n%s\n  ₪%.0f vs $%.2f overseas (%.1fx markup)\n  %s\n",
			r.ProductNameEnglish, r.PriceILS, best, markup, r.ProductURL)
	}

	subject := fmt.Sprintf("Dropwatch price match: %d/%d matched", matched, attempted)
	return m.send(subject, b.String())
}

func (m *Mailer) send(subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.Sender)
	msg.SetHeader("To", m.cfg.Recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	d := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.Sender, m.cfg.Password)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("summary email sent", "recipient", m.cfg.Recipient, "subject", subject)
	return nil
}
