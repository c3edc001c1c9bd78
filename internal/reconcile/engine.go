package reconcile

import (
	"sync"
	"time"

	"github.com/airsentinel/airsentinel-core/internal/aircon"
)

// Logger defines the logging interface used by the Engine.
// This allows different logging implementations to be used.
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

// unitState holds all reconciliation state for one unit. Every field is
// declared and initialized at registration; nothing is conjured lazily.
type unitState struct {
	mu sync.Mutex

	opts      Options
	confirmed *ConfirmedStateStore
	ledger    *CommandLedger
	detector  *MismatchDetector
	policy    *ProtectionPolicy
	debounce  *Debouncer

	// lastPollAt is the timestamp of the last accepted poll snapshot.
	// Polls older than this are discarded: confirmed state never moves
	// backward in time.
	lastPollAt time.Time
}

// Engine is the reconciliation engine. It owns per-unit state and exposes
// the only public entry points of the detection pipeline.
//
// Thread Safety: all methods are safe for concurrent use. Calls for the
// same unit are serialized; different units proceed in parallel.
type Engine struct {
	units  map[string]*unitState
	mu     sync.RWMutex
	logger Logger
}

// NewEngine creates an engine with no registered units.
func NewEngine() *Engine {
	return &Engine{
		units:  make(map[string]*unitState),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Register adds a unit to the engine with the given options. Zero-valued
// option fields fall back to defaults. Returns ErrUnitExists if the unit id
// is already registered.
func (e *Engine) Register(unitID string, opts Options) error {
	opts = opts.withDefaults()

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.units[unitID]; ok {
		return ErrUnitExists
	}

	e.units[unitID] = &unitState{
		opts:      opts,
		confirmed: NewConfirmedStateStore(),
		ledger:    NewCommandLedger(opts.ProtectionWindow, opts.FieldWindows),
		detector:  NewMismatchDetector(opts.TempTolerance),
		policy:    NewProtectionPolicy(opts.TempTolerance),
		debounce:  NewDebouncer(opts.DebounceCooldown),
	}

	e.logger.Info("unit registered",
		"unit_id", unitID,
		"protection_window", opts.ProtectionWindow,
		"debounce_cooldown", opts.DebounceCooldown,
	)
	return nil
}

// Deregister removes a unit and its reconciliation state.
func (e *Engine) Deregister(unitID string) {
	e.mu.Lock()
	delete(e.units, unitID)
	e.mu.Unlock()
}

// unit looks up the state for a unit id.
func (e *Engine) unit(unitID string) (*unitState, error) {
	e.mu.RLock()
	u, ok := e.units[unitID]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrUnitNotRegistered
	}
	return u, nil
}

// OnCommandIssued records command intents for the given fields. It has no
// detection side effects and never touches confirmed state: intent is what
// we asked for, not what the device has told us.
func (e *Engine) OnCommandIssued(unitID string, fields map[aircon.Field]string, now time.Time) error {
	u, err := e.unit(unitID)
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	for f, target := range fields {
		if !aircon.KnownField(f) {
			e.logger.Warn("ignoring command for unknown field", "unit_id", unitID, "field", f)
			continue
		}
		intent := u.ledger.RecordIntent(f, target, now)
		e.logger.Debug("command intent recorded",
			"unit_id", unitID,
			"field", f,
			"target", target,
			"seq", intent.Seq,
		)
	}
	return nil
}

// OnPoll runs the primary detection path on a poll-origin snapshot and then
// advances confirmed state. It returns the override events that survived
// protection filtering and debouncing (at most one per category per poll).
//
// A snapshot whose timestamp precedes the last accepted poll is discarded
// with no state change and an empty result: reconciliation never moves
// confirmed state backward in time.
func (e *Engine) OnPoll(unitID string, snap aircon.Snapshot, now time.Time) ([]OverrideEvent, error) {
	u, err := e.unit(unitID)
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.lastPollAt.IsZero() && snap.TakenAt().Before(u.lastPollAt) {
		e.logger.Debug("discarding out-of-order poll",
			"unit_id", unitID,
			"snapshot_at", snap.TakenAt(),
			"last_poll_at", u.lastPollAt,
		)
		return nil, nil
	}

	events := e.detect(unitID, u, snap, now)

	// Only now advance ground truth and settle confirmed intents.
	u.confirmed.Update(snap)
	u.lastPollAt = snap.TakenAt()
	e.settleIntents(unitID, u, now)

	return events, nil
}

// OnCommandResult runs the same detection pipeline on a command-response
// snapshot as an early signal. Useful for firmware variants whose set call
// echoes pre/post state. Confirmed state is NOT advanced: only a later poll
// may do that.
func (e *Engine) OnCommandResult(unitID string, snap aircon.Snapshot, now time.Time) ([]OverrideEvent, error) {
	u, err := e.unit(unitID)
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return e.detect(unitID, u, snap, now), nil
}

// ConfirmedState returns the last poll-confirmed snapshot for a unit. The
// snapshot is empty (zero fields) until the first poll arrives.
func (e *Engine) ConfirmedState(unitID string) (aircon.Snapshot, error) {
	u, err := e.unit(unitID)
	if err != nil {
		return aircon.Snapshot{}, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return u.confirmed.Snapshot(), nil
}

// detect runs detector → policy → classifier → debouncer for one snapshot.
// Caller must hold u.mu.
func (e *Engine) detect(unitID string, u *unitState, snap aircon.Snapshot, now time.Time) []OverrideEvent {
	divergences := u.detector.Detect(snap, u.confirmed)
	if len(divergences) == 0 {
		return nil
	}

	real := u.policy.Filter(divergences, u.ledger, u.confirmed, now)
	if len(real) == 0 {
		e.logger.Debug("divergences suppressed by protection window",
			"unit_id", unitID,
			"count", len(divergences),
		)
		return nil
	}

	category := Classify(real)
	if !u.debounce.Admit(category, now) {
		e.logger.Debug("override event debounced",
			"unit_id", unitID,
			"category", category,
		)
		return nil
	}

	event := OverrideEvent{
		ID:          GenerateEventID(),
		UnitID:      unitID,
		Category:    category,
		Divergences: real,
		DetectedAt:  now,
	}

	e.logger.Info("override detected",
		"unit_id", unitID,
		"category", category,
		"fields", len(real),
		"source", string(snap.Origin()),
	)

	return []OverrideEvent{event}
}

// settleIntents clears intents whose target the freshly-updated confirmed
// state now matches, moving those fields from CommandPending back to Idle.
// Caller must hold u.mu.
func (e *Engine) settleIntents(unitID string, u *unitState, now time.Time) {
	for _, f := range aircon.AllFields() {
		intent := u.ledger.ActiveIntent(f, now)
		if intent == nil {
			continue
		}
		confirmedVal, ok := u.confirmed.Read(f)
		if !ok {
			continue
		}
		if aircon.ValuesEqual(f, confirmedVal, intent.Target, u.opts.TempTolerance) {
			u.ledger.Clear(f)
			e.logger.Debug("command intent confirmed",
				"unit_id", unitID,
				"field", f,
				"target", intent.Target,
			)
		}
	}
}
