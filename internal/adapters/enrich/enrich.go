// Package enrich triggers the external enrichment collaborator over http.
// The trigger is fire and forget: the merge path never blocks on it and a
// failed delivery only logs, the collaborator writes its overlay back through
// the canonical store on its own schedule
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"finewatch/internal/platform/logger"
)

const defaultTimeout = 5 * time.Second

// Trigger posts event identities to the enrichment endpoint
type Trigger struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// Option mutates Trigger during construction
type Option func(*Trigger)

// WithClient overrides the http client, used by tests
func WithClient(c *http.Client) Option {
	return func(t *Trigger) { t.client = c }
}

// WithTimeout bounds each delivery attempt
func WithTimeout(d time.Duration) Option {
	return func(t *Trigger) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// New builds a trigger for the given endpoint
func New(url string, opts ...Option) *Trigger {
	t := &Trigger{
		url:     url,
		client:  &http.Client{Timeout: defaultTimeout},
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

type triggerWire struct {
	EventID string `json:"event_id"`
}

// TriggerEnrich delivers the identity asynchronously. The caller's context
// only scopes the spawn; delivery gets its own deadline so a cancelled merge
// request does not drop the notification
func (t *Trigger) TriggerEnrich(ctx context.Context, eventID string) {
	if t == nil || t.url == "" || eventID == "" {
		return
	}
	log := logger.C(ctx)

	go func() {
		dctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		body, err := json.Marshal(triggerWire{EventID: eventID})
		if err != nil {
			log.Warn().Err(err).Str("event_id", eventID).Msg("enrich trigger encode failed")
			return
		}

		req, err := http.NewRequestWithContext(dctx, http.MethodPost, t.url, bytes.NewReader(body))
		if err != nil {
			log.Warn().Err(err).Str("event_id", eventID).Msg("enrich trigger build failed")
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			log.Warn().Err(err).Str("event_id", eventID).Msg("enrich trigger delivery failed")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			log.Warn().Int("status", resp.StatusCode).Str("event_id", eventID).Msg("enrich trigger rejected")
			return
		}
		log.Debug().Str("event_id", eventID).Msg("enrich triggered")
	}()
}

// Noop is the trigger used when no enrichment collaborator is configured
type Noop struct{}

// TriggerEnrich does nothing
func (Noop) TriggerEnrich(context.Context, string) {}
