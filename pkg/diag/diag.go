// Package diag implements the compiler's diagnostic policy (§7): a
// bounded buffer of formatted diagnostics instead of a first-error
// panic, so one pass can report every problem it finds before the
// driver aborts the pipeline.
package diag

import (
	"errors"
	"fmt"
)

// Capacity bounds how many diagnostics a single Bag accumulates before
// further reports collapse into a single overflow notice (§4.9, §7).
const Capacity = 32

// Kind classifies a diagnostic for the CLI's exit-code and log-level
// decisions; Warning never forces a non-zero exit on its own.
type Kind uint8

const (
	Error Kind = iota
	Warning
)

func (k Kind) String() string {
	if k == Warning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one reported problem, carrying enough source location
// to reproduce the original's "file:line:column: error: message"
// format.
type Diagnostic struct {
	Kind    Kind
	File    string
	Line    int
	Column  int
	OpName  string
	Message string
}

// String formats the diagnostic the way the CLI prints it to stderr.
func (d Diagnostic) String() string {
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
	}
	return fmt.Sprintf("%s: %s: %s", loc, d.Kind, d.Message)
}

// Bag accumulates diagnostics for one compilation run, capping storage
// at Capacity and tracking whether overflow was already reported.
type Bag struct {
	items    []Diagnostic
	overflow bool
}

// NewBag returns an empty diagnostic bag.
func NewBag() *Bag {
	return &Bag{items: make([]Diagnostic, 0, Capacity)}
}

// Add appends d to the bag. It returns false once Capacity is reached;
// the first time that happens it also appends a single synthetic
// overflow notice so the caller knows output was truncated, matching
// the original's bounded-diagnostics behavior.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= Capacity {
		if !b.overflow {
			b.overflow = true
			b.items = append(b.items, Diagnostic{
				Kind:    Warning,
				Message: fmt.Sprintf("diagnostic capacity (%d) reached; remaining diagnostics suppressed", Capacity),
			})
		}
		return false
	}
	b.items = append(b.items, d)
	return true
}

// Errorf is a convenience wrapper: it builds a Diagnostic with Kind
// Error from a printf-style message and adds it.
func (b *Bag) Errorf(file string, line, column int, opName, format string, args ...any) bool {
	return b.Add(Diagnostic{
		Kind: Error, File: file, Line: line, Column: column,
		OpName: opName, Message: fmt.Sprintf(format, args...),
	})
}

// HasErrors reports whether any Error-kind diagnostic was recorded.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Kind == Error {
			return true
		}
	}
	return false
}

// Items returns the recorded diagnostics in report order.
func (b *Bag) Items() []Diagnostic { return b.items }

// Len returns the number of diagnostics recorded so far, including the
// overflow notice if one was appended.
func (b *Bag) Len() int { return len(b.items) }

// Err adapts the bag into a single Go error via errors.Join, suitable
// for a pass or the driver to return up the call stack; it is nil if
// no Error-kind diagnostic was recorded.
func (b *Bag) Err() error {
	if !b.HasErrors() {
		return nil
	}
	errs := make([]error, 0, len(b.items))
	for _, d := range b.items {
		if d.Kind == Error {
			errs = append(errs, errors.New(d.String()))
		}
	}
	return errors.Join(errs...)
}
