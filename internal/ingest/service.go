package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/airsentinel/airsentinel-core/internal/aircon"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/mqtt"
	"github.com/airsentinel/airsentinel-core/internal/reconcile"
)

// Logger defines the logging interface used by the Service.
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

// Engine is the subset of the reconciliation engine the ingest service
// drives. Implemented by *reconcile.Engine.
type Engine interface {
	OnPoll(unitID string, snap aircon.Snapshot, now time.Time) ([]reconcile.OverrideEvent, error)
	OnCommandResult(unitID string, snap aircon.Snapshot, now time.Time) ([]reconcile.OverrideEvent, error)
	OnCommandIssued(unitID string, fields map[aircon.Field]string, now time.Time) error
}

// Subscriber is the MQTT surface the service consumes. Implemented by
// *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Notifier receives override events emitted during ingestion.
type Notifier interface {
	NotifyAll(ctx context.Context, events []reconcile.OverrideEvent)
}

// Telemetry records accepted poll snapshots in the time-series store.
type Telemetry interface {
	WriteTemperatureMetric(unitID string, insideC float64, outsideC float64)
	WriteUnitStateMetric(unitID string, mode string, powerOn bool, targetTempC float64)
}

// envelope is the JSON message format bridges publish on state and ack
// topics. Sensors carries read-only values (htemp, otemp) that are not
// controllable fields and never enter reconciliation.
type envelope struct {
	UnitID  string            `json:"unit_id,omitempty"`
	TakenAt time.Time         `json:"taken_at"`
	Fields  map[string]string `json:"fields"`
	Sensors map[string]string `json:"sensors,omitempty"`
}

// commandEnvelope is the JSON message format on command topics.
type commandEnvelope struct {
	UnitID   string            `json:"unit_id,omitempty"`
	IssuedAt time.Time         `json:"issued_at"`
	Fields   map[string]string `json:"fields"`
}

// Service subscribes to the bridge topic families and routes each message
// into the reconciliation engine.
type Service struct {
	engine    Engine
	sub       Subscriber
	notifier  Notifier
	telemetry Telemetry
	qos       byte
	logger    Logger

	// nowFn supplies the fallback timestamp for messages without one.
	nowFn func() time.Time

	polls     atomic.Uint64
	acks      atomic.Uint64
	commands  atomic.Uint64
	malformed atomic.Uint64
}

// NewService creates an ingest service. Notifier and telemetry are
// optional; nil sinks are skipped.
func NewService(engine Engine, sub Subscriber, notifier Notifier, telemetry Telemetry, qos byte) *Service {
	return &Service{
		engine:    engine,
		sub:       sub,
		notifier:  notifier,
		telemetry: telemetry,
		qos:       qos,
		logger:    noopLogger{},
		nowFn:     time.Now,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Start subscribes to the state, ack, and command topic families.
func (s *Service) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{mqtt.Topics{}.AllUnitStates(), s.handleState},
		{mqtt.Topics{}.AllUnitAcks(), s.handleAck},
		{mqtt.Topics{}.AllUnitCommands(), s.handleCommand},
	}

	for _, sub := range subs {
		if err := s.sub.Subscribe(sub.topic, s.qos, sub.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", sub.topic, err)
		}
	}

	s.logger.Info("ingest subscriptions established", "topics", len(subs))
	return nil
}

// Stop removes the service's subscriptions. Safe to call after a failed
// Start; unsubscribe errors are logged, not returned.
func (s *Service) Stop() {
	topics := []string{
		mqtt.Topics{}.AllUnitStates(),
		mqtt.Topics{}.AllUnitAcks(),
		mqtt.Topics{}.AllUnitCommands(),
	}
	for _, topic := range topics {
		if err := s.sub.Unsubscribe(topic); err != nil {
			s.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

// handleState processes one poll snapshot message.
func (s *Service) handleState(topic string, payload []byte) error {
	unitID, env, err := s.parseEnvelope(topic, payload)
	if err != nil {
		s.malformed.Add(1)
		s.logger.Warn("dropping state message", "topic", topic, "error", err)
		return nil
	}
	s.polls.Add(1)

	snap := aircon.NewSnapshot(s.normalizeFields(unitID, env.Fields), env.TakenAt, aircon.OriginPoll)

	events, err := s.engine.OnPoll(unitID, snap, env.TakenAt)
	if err != nil {
		s.logger.Warn("poll rejected", "unit_id", unitID, "error", err)
		return nil
	}

	s.recordTelemetry(unitID, snap, env.Sensors)

	if s.notifier != nil && len(events) > 0 {
		s.notifier.NotifyAll(context.Background(), events)
	}
	return nil
}

// handleAck processes one command-response snapshot message.
func (s *Service) handleAck(topic string, payload []byte) error {
	unitID, env, err := s.parseEnvelope(topic, payload)
	if err != nil {
		s.malformed.Add(1)
		s.logger.Warn("dropping ack message", "topic", topic, "error", err)
		return nil
	}
	s.acks.Add(1)

	snap := aircon.NewSnapshot(s.normalizeFields(unitID, env.Fields), env.TakenAt, aircon.OriginCommandResponse)

	events, err := s.engine.OnCommandResult(unitID, snap, env.TakenAt)
	if err != nil {
		s.logger.Warn("ack rejected", "unit_id", unitID, "error", err)
		return nil
	}

	if s.notifier != nil && len(events) > 0 {
		s.notifier.NotifyAll(context.Background(), events)
	}
	return nil
}

// handleCommand processes one observed command issuance.
func (s *Service) handleCommand(topic string, payload []byte) error {
	unitID := mqtt.UnitFromTopic(topic)
	if unitID == "" || unitID == "+" {
		s.malformed.Add(1)
		s.logger.Warn("dropping command message", "topic", topic, "error", "no unit id in topic")
		return nil
	}

	var env commandEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.malformed.Add(1)
		s.logger.Warn("dropping command message", "topic", topic, "error", err)
		return nil
	}
	if len(env.Fields) == 0 {
		s.malformed.Add(1)
		s.logger.Warn("dropping command message", "topic", topic, "error", "no fields")
		return nil
	}
	if env.IssuedAt.IsZero() {
		env.IssuedAt = s.nowFn()
	}
	s.commands.Add(1)

	if err := s.engine.OnCommandIssued(unitID, s.normalizeFields(unitID, env.Fields), env.IssuedAt); err != nil {
		s.logger.Warn("command intent rejected", "unit_id", unitID, "error", err)
	}
	return nil
}

// parseEnvelope decodes a state or ack message and resolves its unit id.
// The topic segment is authoritative; an envelope unit_id that disagrees
// is logged and ignored.
func (s *Service) parseEnvelope(topic string, payload []byte) (string, envelope, error) {
	unitID := mqtt.UnitFromTopic(topic)
	if unitID == "" || unitID == "+" {
		return "", envelope{}, fmt.Errorf("no unit id in topic")
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", envelope{}, fmt.Errorf("decoding payload: %w", err)
	}
	if len(env.Fields) == 0 {
		return "", envelope{}, fmt.Errorf("no fields")
	}
	if env.UnitID != "" && env.UnitID != unitID {
		s.logger.Warn("envelope unit id disagrees with topic",
			"topic", topic, "envelope_unit_id", env.UnitID)
	}
	if env.TakenAt.IsZero() {
		env.TakenAt = s.nowFn()
	}
	return unitID, env, nil
}

// normalizeFields converts raw string keys to fields, normalizing legacy
// codes and logging anything unrecognized.
func (s *Service) normalizeFields(unitID string, raw map[string]string) map[aircon.Field]string {
	out := make(map[aircon.Field]string, len(raw))
	for k, v := range raw {
		f := aircon.Field(k)
		if !aircon.KnownField(f) {
			s.logger.Debug("ignoring unknown field", "unit_id", unitID, "field", k)
			continue
		}
		out[f] = aircon.NormalizeValue(f, v)
	}
	return out
}

// recordTelemetry writes time-series points for an accepted poll snapshot.
func (s *Service) recordTelemetry(unitID string, snap aircon.Snapshot, sensors map[string]string) {
	if s.telemetry == nil {
		return
	}

	mode, _ := snap.Value(aircon.FieldMode)
	power, _ := snap.Value(aircon.FieldPower)
	target := 0.0
	if raw, ok := snap.Value(aircon.FieldTargetTemp); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			target = v
		}
	}
	s.telemetry.WriteUnitStateMetric(unitID, mode, power == aircon.PowerOn, target)

	inside, okInside := parseSensor(sensors, "htemp")
	outside, _ := parseSensor(sensors, "otemp")
	if okInside {
		s.telemetry.WriteTemperatureMetric(unitID, inside, outside)
	}
}

// parseSensor reads one numeric sensor value; "-" and "--" mean absent.
func parseSensor(sensors map[string]string, key string) (float64, bool) {
	raw, ok := sensors[key]
	if !ok || raw == "-" || raw == "--" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Stats reports message counters since startup.
type Stats struct {
	Polls     uint64 `json:"polls"`
	Acks      uint64 `json:"acks"`
	Commands  uint64 `json:"commands"`
	Malformed uint64 `json:"malformed"`
}

// GetStats returns message counters.
func (s *Service) GetStats() Stats {
	return Stats{
		Polls:     s.polls.Load(),
		Acks:      s.acks.Load(),
		Commands:  s.commands.Load(),
		Malformed: s.malformed.Load(),
	}
}
