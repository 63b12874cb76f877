package alias

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
)

// PromotionError reports a promotion that failed before any alias was mutated. Retrying with
// a fresh run is safe.
type PromotionError struct {
	Function string
	Err      error
}

// Error implements the error interface.
func (e *PromotionError) Error() string {
	return fmt.Sprintf("promotion of %s was not attempted: %v", e.Function, e.Err)
}

// Unwrap returns the underlying error.
func (e *PromotionError) Unwrap() error {
	return e.Err
}

// PartialPromotionError reports a promotion that failed after at least one alias mutation
// was applied. The ring is left inconsistent and needs manual repair.
type PartialPromotionError struct {
	Function string
	Applied  []Step
	Failed   Step
	Err      error
}

// Error implements the error interface.
func (e *PartialPromotionError) Error() string {
	applied := make([]string, 0, len(e.Applied))
	for _, s := range e.Applied {
		applied = append(applied, s.String())
	}

	return fmt.Sprintf("promotion of %s partially applied [%s], failed at %q, manual alias repair required: %v",
		e.Function, strings.Join(applied, "; "), e.Failed.String(), e.Err)
}

// Unwrap returns the underlying error.
func (e *PartialPromotionError) Unwrap() error {
	return e.Err
}

// Manager is the only component that mutates the stable aliases of a function.
type Manager struct {
	platform platform.Platform
	lggr     logger.Logger
}

// NewManager creates a Manager.
func NewManager(p platform.Platform, lggr logger.Logger) *Manager {
	return &Manager{platform: p, lggr: lggr}
}

// Read returns the current ring of name.
func (m *Manager) Read(ctx context.Context, name string) (Ring, error) {
	aliases, err := m.platform.GetAliases(ctx, name)
	if err != nil {
		return Ring{}, fmt.Errorf("failed to list aliases of %s: %w", name, err)
	}

	return RingFrom(aliases), nil
}

// Promotion is the ring before and after a promotion.
type Promotion struct {
	Before Ring `json:"before" yaml:"before"`
	After  Ring `json:"after" yaml:"after"`
}

// Message renders the operator facing summary of the promotion.
func (p Promotion) Message() string {
	if p.Before.Empty() {
		return fmt.Sprintf("%s and %s aliases created with version: %s", CurrentStable, PreviousStable, p.After.Current)
	}

	return fmt.Sprintf("Update aliases completed. %s alias is: %s and %s alias is: %s",
		CurrentStable, p.After.Current, PreviousStable, p.After.Previous)
}

// Promote moves the ring of name to v.
//
// A failure before the first mutation returns a *PromotionError. A failure after the first
// mutation returns a *PartialPromotionError.
func (m *Manager) Promote(ctx context.Context, name string, v platform.Version) (Promotion, error) {
	if v == "" {
		return Promotion{}, &PromotionError{Function: name, Err: errors.New("version is empty")}
	}

	ring, err := m.Read(ctx, name)
	if err != nil {
		return Promotion{}, &PromotionError{Function: name, Err: err}
	}
	p := Promotion{Before: ring}

	steps, err := ring.Plan(v)
	if err != nil {
		return p, &PromotionError{Function: name, Err: err}
	}

	m.lggr.Infow("Promoting function", "function", name, "version", v,
		"current", ring.Current, "previous", ring.Previous)

	for i, step := range steps {
		if err := m.apply(ctx, name, step); err != nil {
			if i == 0 {
				return p, &PromotionError{Function: name, Err: err}
			}

			return p, &PartialPromotionError{
				Function: name,
				Applied:  steps[:i],
				Failed:   step,
				Err:      err,
			}
		}
		m.lggr.Debugw("Applied alias step", "function", name, "step", step.String())
	}

	p.After = ring.Next(v)

	return p, nil
}

func (m *Manager) apply(ctx context.Context, name string, s Step) error {
	switch s.Op {
	case StepCreate:
		return m.platform.CreateAlias(ctx, name, s.Alias, s.Version)
	case StepUpdate:
		return m.platform.UpdateAlias(ctx, name, s.Alias, s.Version)
	default:
		return fmt.Errorf("unknown alias step %q", s.Op)
	}
}
