// Package errortypes defines the errors produced by the document pipeline.
//
// Every failure that aborts document generation is one of the types below.
// Callers discriminate with errors.As, or use Kind for a stable label.
package errortypes

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds, as reported by Kind.
const (
	KindTemplateNotFound    = "TemplateNotFoundError"
	KindTemplateLoad        = "TemplateLoadError"
	KindTemplateValidation  = "TemplateValidationError"
	KindTemplateCompilation = "TemplateCompilationError"
	KindTemplateRuntime     = "TemplateRuntimeError"
	KindMissingVariable     = "MissingVariableError"
	KindDesignInjection     = "DesignSystemInjectionError"
	KindUnknown             = "UnknownError"
)

// TemplateNotFoundError is returned when a template or partial has no backing
// resource.
type TemplateNotFoundError struct {
	Name string // requested name, e.g. "orders/confirmation"
	Path string // resolved location that was searched
	Err  error
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %q not found (searched %s)", e.Name, e.Path)
}

func (e *TemplateNotFoundError) Unwrap() error { return e.Err }

// TemplateLoadError is returned when the backing store fails to read a
// resource that may exist.
type TemplateLoadError struct {
	Name string
	Path string
	Err  error
}

func (e *TemplateLoadError) Error() string {
	return fmt.Sprintf("template %q: load %s: %v", e.Name, e.Path, e.Err)
}

func (e *TemplateLoadError) Unwrap() error { return e.Err }

// TemplateValidationError is returned by a validation checkpoint that decided
// the structural diagnostics of a template are fatal.
type TemplateValidationError struct {
	Template string
	Issues   []string
}

func (e *TemplateValidationError) Error() string {
	return fmt.Sprintf("template %q failed validation: %s", e.Template, strings.Join(e.Issues, "; "))
}

// TemplateCompilationError is returned for malformed template syntax.
type TemplateCompilationError struct {
	Template string // template name
	Fragment string // the offending source fragment
	LineNo   int
	ColNo    int
	Err      error
}

var _ ErrFilePos = &TemplateCompilationError{}

func (e *TemplateCompilationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "template %s", e.Template)
	if e.LineNo > 0 {
		fmt.Fprintf(&b, ":%d:%d", e.LineNo, e.ColNo)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.Fragment != "" {
		fmt.Fprintf(&b, " (near %q)", e.Fragment)
	}
	return b.String()
}

func (e *TemplateCompilationError) Unwrap() error { return e.Err }
func (e *TemplateCompilationError) File() string  { return e.Template }
func (e *TemplateCompilationError) Line() int     { return e.LineNo }
func (e *TemplateCompilationError) Col() int      { return e.ColNo }

// TemplateRuntimeError is returned when execution fails: a helper failed, a
// partial could not be resolved, or partial inclusion recursed.
type TemplateRuntimeError struct {
	Template string // template executing when the failure occurred
	Partial  string // partial name, if a partial was involved
	Helper   string // helper name, if a helper was involved
	Err      error
}

func (e *TemplateRuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "template %s", e.Template)
	if e.Partial != "" {
		fmt.Fprintf(&b, ": partial %q", e.Partial)
	}
	if e.Helper != "" {
		fmt.Fprintf(&b, ": helper %q", e.Helper)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *TemplateRuntimeError) Unwrap() error { return e.Err }

// MissingVariableError is returned in strict mode when a referenced path has
// no value.
type MissingVariableError struct {
	Template string
	Path     string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template %s: %q is undefined", e.Template, e.Path)
}

// DesignSystemInjectionError is returned when stylesheet generation, token
// resolution or injection fails.
type DesignSystemInjectionError struct {
	Stage string
	Err   error
}

func (e *DesignSystemInjectionError) Error() string {
	return fmt.Sprintf("design system injection failed at %s: %v", e.Stage, e.Err)
}

func (e *DesignSystemInjectionError) Unwrap() error { return e.Err }

// Kind returns the taxonomy label of the first pipeline error found in err's
// chain, or KindUnknown.
func Kind(err error) string {
	var (
		notFound    *TemplateNotFoundError
		load        *TemplateLoadError
		validation  *TemplateValidationError
		compilation *TemplateCompilationError
		runtime     *TemplateRuntimeError
		missing     *MissingVariableError
		injection   *DesignSystemInjectionError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &missing):
		return KindMissingVariable
	case errors.As(err, &runtime):
		return KindTemplateRuntime
	case errors.As(err, &compilation):
		return KindTemplateCompilation
	case errors.As(err, &notFound):
		return KindTemplateNotFound
	case errors.As(err, &load):
		return KindTemplateLoad
	case errors.As(err, &validation):
		return KindTemplateValidation
	case errors.As(err, &injection):
		return KindDesignInjection
	}
	return KindUnknown
}
