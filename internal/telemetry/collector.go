package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/logging"
)

// Collector forwards bus events to an external collector endpoint. Failures
// of any kind are logged at WARN and discarded: no retries, no propagation
// to the caller, per the best-effort contract of the emission pipeline. The
// envelope schema below is owned by the collector, not by this core.
type Collector struct {
	endpoint string
	client   *http.Client
	log      *logging.Logger
}

// envelope is the wire format the collector accepts.
type envelope struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data Event     `json:"data"`
}

// NewCollector creates a Collector from configuration. Returns nil when
// telemetry is disabled or no endpoint is configured; a nil Collector is
// safe to Attach.
func NewCollector(cfg *config.TelemetryConfig, log *logging.Logger) *Collector {
	if cfg == nil || !cfg.Enabled || cfg.Endpoint == "" {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	return &Collector{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

// Attach subscribes the collector to every event on the bus. A nil receiver
// attaches nothing.
func (c *Collector) Attach(bus *Bus) {
	if c == nil {
		return
	}
	bus.SubscribeAll(c.forward)
}

// forward POSTs one event to the collector, swallowing every failure.
func (c *Collector) forward(ev Event) {
	body, err := json.Marshal(envelope{
		Type: ev.EventType(),
		At:   ev.Timestamp().UTC(),
		Data: ev,
	})
	if err != nil {
		c.log.Warn("telemetry encode failed", "type", ev.EventType(), "error", err)
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.log.Warn("telemetry request failed", "type", ev.EventType(), "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("telemetry fan-out failed", "type", ev.EventType(), "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.log.Warn("telemetry collector rejected event", "type", ev.EventType(), "status", resp.StatusCode)
	}
}
