package reconcile

import (
	"errors"
	"fmt"

	"github.com/danmuck/uvguard/internal/manifest"
)

// Step names recorded in an Outcome.
const (
	StepLoad    = "load manifest"
	StepLookup  = "lookup"
	StepResolve = "resolve"
	StepInit    = "package init"
	StepAdd     = "package add"
	StepRemove  = "package remove"
	StepSync    = "package sync"
	StepSave    = "save manifest"
	StepInstall = "install"
)

// Step is one sub-step of an operation. Err is nil on success.
type Step struct {
	Name   string
	Target string
	Err    error
}

func (s Step) Failed() bool {
	return s.Err != nil
}

func (s Step) String() string {
	label := s.Name
	if s.Target != "" {
		label += " " + s.Target
	}
	if s.Err != nil {
		return label + ": " + s.Err.Error()
	}
	return label + ": ok"
}

// Outcome is the result of one top-level operation: every attempted step
// plus the manifest state actually persisted.
type Outcome struct {
	Operation string
	Steps     []Step
	Manifest  *manifest.Manifest
}

// record appends a step and hands err back for early returns.
func (o *Outcome) record(name, target string, err error) error {
	o.Steps = append(o.Steps, Step{Name: name, Target: target, Err: err})
	return err
}

// Failed returns the failed steps in order.
func (o *Outcome) Failed() []Step {
	var out []Step
	for _, s := range o.Steps {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

// OK reports full success.
func (o *Outcome) OK() bool {
	return len(o.Failed()) == 0
}

// Err joins every failed step, labelled by step and target.
func (o *Outcome) Err() error {
	var errs []error
	for _, s := range o.Failed() {
		if s.Target != "" {
			errs = append(errs, fmt.Errorf("%s %s: %w", s.Name, s.Target, s.Err))
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, s.Err))
	}
	return errors.Join(errs...)
}
