// Package script turns client-supplied source text into script units.
//
// Trust boundary: any client that can send a script-evaluation command runs arbitrary code in
// the browser context, and any client that can subscribe to events runs arbitrary code in the
// bridge's callback runtime. Both are disabled unless the operator opts in (ALLOW_SCRIPTS).
package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// ErrDisabled is returned when script evaluation has not been enabled.
var ErrDisabled = errors.New("script evaluation is disabled")

// Mode selects how source text is parsed.
type Mode int

const (
	// Expression accepts a function or expression, falling back to a statement list
	// (what evaluate and waitForFunction take).
	Expression Mode = iota
	// Program accepts a statement list (what addInitScript takes).
	Program
)

// Unit is compiled source text. It implements engine.Script so it can be passed as an argument
// to an engine binding; callback units can also be run by a Runner.
type Unit struct {
	name     string
	source   string
	program  *goja.Program
	callback bool
}

// Source returns the source text as the client supplied it.
func (u *Unit) Source() string { return u.source }

// Name returns the diagnostic name the unit was compiled under.
func (u *Unit) Name() string { return u.name }

// IsCallback reports whether the unit was built by CompileCallback.
func (u *Unit) IsCallback() bool { return u.callback }

// Compile parses source without running it. Syntax errors are reported here, before anything
// reaches the browser.
func Compile(name, source string, mode Mode) (*Unit, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("script %s: empty source", name)
	}
	var (
		prog *goja.Program
		err  error
	)
	switch mode {
	case Program:
		prog, err = goja.Compile(name, source, false)
	default:
		prog, err = goja.Compile(name, "("+source+"\n)", false)
		if err != nil {
			if p, perr := goja.Compile(name, source, false); perr == nil {
				prog, err = p, nil
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	return &Unit{name: name, source: source, program: prog}, nil
}

// CompileCallback wraps body in a function taking params (default: event) so a Runner can invoke
// it with arguments.
func CompileCallback(name, body string, params ...string) (*Unit, error) {
	if len(params) == 0 {
		params = []string{"event"}
	}
	wrapped := fmt.Sprintf("(function(%s) {\n%s\n})", strings.Join(params, ", "), body)
	prog, err := goja.Compile(name, wrapped, false)
	if err != nil {
		return nil, fmt.Errorf("callback %s: %w", name, err)
	}
	return &Unit{name: name, source: body, program: prog, callback: true}, nil
}
