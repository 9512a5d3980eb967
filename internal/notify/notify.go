package notify

import (
	"context"
	"time"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/reviewd/internal/model"
)

const defaultTimeout = 10 * time.Second

// Config represents notification delivery configuration. An empty webhook URL
// keeps notifications log-only.
type Config struct {
	WebhookURL string        `yaml:"webhook_url" env:"NOTIFY_WEBHOOK_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"NOTIFY_TIMEOUT"`
}

func (cfg *Config) PrepareAndValidate() error {
	cfg.Timeout = lang.Check(cfg.Timeout, defaultTimeout)
	return nil
}

var _ model.Notifier = (*Notifier)(nil)

// Notifier publishes review lifecycle events. Every event is logged; when a
// webhook URL is configured the event is also POSTed there. Delivery is best
// effort: a failed webhook never fails the review.
type Notifier struct {
	cfg Config
	log logze.Logger
	cli *cliex.HTTP
}

// New creates a notifier, building the HTTP client only when a webhook URL is
// configured.
func New(cfg Config) (*Notifier, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	n := &Notifier{
		cfg: cfg,
		log: logze.With("module", "notify"),
	}

	if cfg.WebhookURL != "" {
		cli, err := cliex.NewWithConfig(cliex.Config{
			RequestTimeout: cfg.Timeout,
		})
		if err != nil {
			return nil, errm.Wrap(err, "failed to create HTTP client")
		}
		n.cli = cli
	}

	return n, nil
}

// Notify publishes one terminal review event.
func (n *Notifier) Notify(ctx context.Context, event model.ReviewEvent) {
	log := n.log.WithFields(
		"type", event.Type,
		"kind", event.Kind,
		"unit_id", event.UnitID,
	)

	if event.Type == model.EventReviewFailed {
		log.Warn("review failed", "reason", event.Reason)
	} else {
		log.Info("review completed", "record_id", event.RecordID, "elapsed", event.Elapsed.String())
	}

	if n.cli == nil {
		return
	}
	if _, err := n.cli.Post(ctx, n.cfg.WebhookURL, event, nil); err != nil {
		log.Err(err, "failed to deliver webhook notification")
	}
}
