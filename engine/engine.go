// Package engine drives batches across the state managers. Every
// manager keeps its own ephemeral delta and pre-batch snapshot; the
// engine sequences the snapshot, the staged mutations, and either a
// global rollback or the fixed-order durable apply.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cube/coin"
	"cube/flame"
	"cube/graveyard"
	"cube/observability"
	"cube/observability/metrics"
	"cube/registry"
	"cube/state"
)

// ErrIntegrityViolation marks an apply failure that happened after
// another manager already persisted its part of the batch. The stores
// are inconsistent until the failing manager's apply is retried.
var ErrIntegrityViolation = errors.New("engine: partial apply, stores inconsistent")

// Managers bundles the state managers the engine drives.
type Managers struct {
	Registry  *registry.Manager
	Coin      *coin.Manager
	State     *state.Manager
	Flames    *flame.Manager
	Graveyard *graveyard.Manager
}

// Engine serializes batches. Each manager carries its own guard for
// concurrent readers; the engine's guard keeps whole batches atomic
// with respect to each other.
type Engine struct {
	mu      sync.Mutex
	log     *slog.Logger
	metrics *metrics.EngineMetrics
	mgrs    Managers
}

// New returns an engine over the given managers.
func New(mgrs Managers, log *slog.Logger) *Engine {
	return &Engine{
		log:     log.With("component", "engine"),
		metrics: metrics.Engine(),
		mgrs:    mgrs,
	}
}

// Heights carries the projector cursor for one batch: where the new
// flame projection nests and up to which height old projections expire.
type Heights struct {
	NewProjector    uint64
	ProjectorExpiry uint64
}

// ExecuteBatch snapshots every manager, runs fn to stage the batch, and
// on success applies all deltas durably. Any error from fn rolls the
// whole batch back. The returned template lists the flames funded for
// the new projector height.
func (e *Engine) ExecuteBatch(heights Heights, fn func(Managers) error) ([]flame.AccountFlames, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.preExecution()

	if err := fn(e.mgrs); err != nil {
		e.rollback("execution")
		return nil, err
	}

	return e.applyChanges(heights)
}

func (e *Engine) preExecution() {
	e.mgrs.Registry.PreExecution()
	e.mgrs.Coin.PreExecution()
	e.mgrs.State.PreExecution()
	e.mgrs.Flames.PreExecution()
	e.mgrs.Graveyard.PreExecution()
}

func (e *Engine) rollback(reason string) {
	e.mgrs.Registry.RollbackLast()
	e.mgrs.Coin.RollbackLast()
	e.mgrs.State.RollbackLast()
	e.mgrs.Flames.RollbackLast()
	e.mgrs.Graveyard.RollbackLast()
	e.metrics.ObserveRollback(reason)
	e.log.Debug("batch rolled back", "reason", reason)
}

// applyChanges persists every delta in a fixed order. Each manager
// validates its whole delta before writing, so a failure normally
// surfaces on the first manager with nothing persisted yet; a later
// failure is an integrity violation and is logged as such.
func (e *Engine) applyChanges(heights Heights) ([]flame.AccountFlames, error) {
	start := time.Now()

	steps := []struct {
		name  string
		apply func() error
	}{
		{"registry", e.mgrs.Registry.ApplyChanges},
		{"coin", e.mgrs.Coin.ApplyChanges},
		{"state", e.mgrs.State.ApplyChanges},
		{"graveyard", e.mgrs.Graveyard.ApplyChanges},
	}

	for i, step := range steps {
		if err := step.apply(); err != nil {
			if i == 0 {
				e.rollback("apply")
				return nil, err
			}
			e.metrics.ObserveIntegrityViolation(step.name)
			e.log.Error("integrity violation: apply failed after partial persist",
				"manager", step.name, "err", err)
			return nil, fmt.Errorf("%w: %s: %v", ErrIntegrityViolation, step.name, err)
		}
	}

	// Flames go last: the funding source reads the coin manager's
	// freshly applied shadow sums.
	template, err := e.mgrs.Flames.ApplyChanges(e.mgrs.Coin, heights.NewProjector, heights.ProjectorExpiry)
	if err != nil {
		e.metrics.ObserveIntegrityViolation("flame")
		e.log.Error("integrity violation: apply failed after partial persist",
			"manager", "flame", "err", err)
		return nil, fmt.Errorf("%w: flame: %v", ErrIntegrityViolation, err)
	}

	flames := 0
	for _, acct := range template {
		flames += len(acct.Flames)
	}
	observability.Events().RecordTemplateFlames(flames)

	e.metrics.ObserveBatchApplied(time.Since(start).Seconds())
	return template, nil
}
