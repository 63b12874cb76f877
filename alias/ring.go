// Package alias owns the two slot rollback ring of a function: CURR_STABLE points at the
// promoted production version and LAST_STABLE at the version it replaced.
package alias

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/smartcontractkit/beamline/platform"
)

const (
	// CurrentStable is the alias of the promoted production version.
	CurrentStable = "CURR_STABLE"
	// PreviousStable is the alias of the rollback target.
	PreviousStable = "LAST_STABLE"
)

// ErrInconsistentRing is returned when exactly one of the two aliases exists. This can only
// happen after a partial promotion and requires manual repair.
var ErrInconsistentRing = errors.New("alias ring is inconsistent: only one of " +
	CurrentStable + " and " + PreviousStable + " exists")

// Ring is the {current, previous} pair. An empty version means the alias does not exist.
type Ring struct {
	Current  platform.Version `json:"current" yaml:"current"`
	Previous platform.Version `json:"previous" yaml:"previous"`
}

// RingFrom builds a Ring from a platform alias table, ignoring unrelated aliases.
func RingFrom(aliases map[string]platform.Version) Ring {
	return Ring{
		Current:  lo.ValueOr(aliases, CurrentStable, ""),
		Previous: lo.ValueOr(aliases, PreviousStable, ""),
	}
}

// Empty reports whether neither alias exists.
func (r Ring) Empty() bool {
	return r.Current == "" && r.Previous == ""
}

// Validate returns ErrInconsistentRing when only one alias exists.
func (r Ring) Validate() error {
	if (r.Current == "") != (r.Previous == "") {
		return fmt.Errorf("%w (current=%q, previous=%q)", ErrInconsistentRing, r.Current, r.Previous)
	}

	return nil
}

// Next returns the ring after promoting v. The previous slot always receives the old current
// value, so it can never move past what production ran before this promotion.
func (r Ring) Next(v platform.Version) Ring {
	if r.Empty() {
		return Ring{Current: v, Previous: v}
	}

	return Ring{Current: v, Previous: r.Current}
}

// StepOp is the kind of alias mutation.
type StepOp string

const (
	StepCreate StepOp = "create"
	StepUpdate StepOp = "update"
)

// Step is one alias mutation of a promotion.
type Step struct {
	Op      StepOp           `json:"op" yaml:"op"`
	Alias   string           `json:"alias" yaml:"alias"`
	Version platform.Version `json:"version" yaml:"version"`
}

// String implements fmt.Stringer.
func (s Step) String() string {
	return fmt.Sprintf("%s %s -> %s", s.Op, s.Alias, s.Version)
}

// Plan returns the ordered alias mutations that move r to r.Next(v).
//
// On an empty ring both aliases are created, current first. Otherwise the previous slot is
// captured from the old current before the current slot is overwritten.
func (r Ring) Plan(v platform.Version) ([]Step, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	next := r.Next(v)
	if r.Empty() {
		return []Step{
			{Op: StepCreate, Alias: CurrentStable, Version: next.Current},
			{Op: StepCreate, Alias: PreviousStable, Version: next.Previous},
		}, nil
	}

	return []Step{
		{Op: StepUpdate, Alias: PreviousStable, Version: next.Previous},
		{Op: StepUpdate, Alias: CurrentStable, Version: next.Current},
	}, nil
}
