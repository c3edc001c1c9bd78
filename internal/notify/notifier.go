package notify

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/airsentinel/airsentinel-core/internal/infrastructure/mqtt"
	"github.com/airsentinel/airsentinel-core/internal/reconcile"
)

// Logger defines the logging interface used by the Notifier.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher publishes override events to the MQTT bus.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Broadcaster pushes an event to connected WebSocket clients.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// HistoryWriter persists override events for later querying.
type HistoryWriter interface {
	RecordOverride(ctx context.Context, evt reconcile.OverrideEvent) error
}

// MetricsWriter records an override point in the time-series store.
type MetricsWriter interface {
	WriteOverrideEvent(unitID string, category string, divergences int, detectedAt time.Time)
}

// Notifier fans an override event out to each configured sink. Any sink
// may be nil; it is skipped. Sink errors are logged and swallowed so the
// reconciliation path never blocks on delivery.
type Notifier struct {
	publisher Publisher
	hub       Broadcaster
	history   HistoryWriter
	metrics   MetricsWriter
	logger    Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewNotifier creates a notifier with the given sinks. Nil sinks are
// allowed and skipped.
func NewNotifier(publisher Publisher, hub Broadcaster, history HistoryWriter, metrics MetricsWriter) *Notifier {
	return &Notifier{
		publisher: publisher,
		hub:       hub,
		history:   history,
		metrics:   metrics,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the notifier.
func (n *Notifier) SetLogger(logger Logger) {
	n.logger = logger
}

// Notify delivers one override event to every configured sink.
func (n *Notifier) Notify(ctx context.Context, evt reconcile.OverrideEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		// Events are plain structs; this only fires on a programming error.
		n.logger.Error("failed to encode override event", "unit_id", evt.UnitID, "error", err)
		n.failed.Add(1)
		return
	}

	n.logger.Info("override detected",
		"unit_id", evt.UnitID,
		"category", evt.Category,
		"divergences", len(evt.Divergences))

	if n.publisher != nil {
		topic := mqtt.Topics{}.CoreOverride(evt.UnitID)
		if err := n.publisher.Publish(topic, payload, 1, false); err != nil {
			n.logger.Warn("override publish failed", "unit_id", evt.UnitID, "error", err)
			n.failed.Add(1)
		}
	}

	if n.hub != nil {
		n.hub.Broadcast(payload)
	}

	if n.history != nil {
		if err := n.history.RecordOverride(ctx, evt); err != nil {
			n.logger.Warn("override history write failed", "unit_id", evt.UnitID, "error", err)
			n.failed.Add(1)
		}
	}

	if n.metrics != nil {
		n.metrics.WriteOverrideEvent(evt.UnitID, string(evt.Category), len(evt.Divergences), evt.DetectedAt)
	}

	n.published.Add(1)
}

// NotifyAll delivers a batch of events in order.
func (n *Notifier) NotifyAll(ctx context.Context, events []reconcile.OverrideEvent) {
	for _, evt := range events {
		n.Notify(ctx, evt)
	}
}

// Stats reports delivery counters since startup.
type Stats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
}

// GetStats returns delivery counters.
func (n *Notifier) GetStats() Stats {
	return Stats{
		Published: n.published.Load(),
		Failed:    n.failed.Load(),
	}
}
