package render

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrInvalidPrinter = errors.New("render: invalid printer")

// Printer describes the table for one command.
type Printer struct {
	Command string
	Columns []string
	// Headers optionally relabels Columns, position by position.
	Headers []string
}

func (p Printer) Validate() error {
	if strings.TrimSpace(p.Command) == "" {
		return fmt.Errorf("%w: missing command", ErrInvalidPrinter)
	}
	if strings.ContainsAny(p.Command, " \t") {
		return fmt.Errorf("%w: command %q must be a single word", ErrInvalidPrinter, p.Command)
	}
	if len(p.Columns) == 0 {
		return fmt.Errorf("%w: %s has no columns", ErrInvalidPrinter, p.Command)
	}
	if len(p.Headers) > len(p.Columns) {
		return fmt.Errorf("%w: %s has more headers than columns", ErrInvalidPrinter, p.Command)
	}
	for i, col := range p.Columns {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("%w: %s column %d is empty", ErrInvalidPrinter, p.Command, i)
		}
	}
	return nil
}

func (p Printer) header(i int) string {
	if i < len(p.Headers) && p.Headers[i] != "" {
		return p.Headers[i]
	}
	return strings.ToUpper(p.Columns[i])
}

// CommandName returns the first word of a command line, which is what
// printers are keyed by.
func CommandName(commandLine string) string {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Registry maps command names to printers.
type Registry struct {
	mu       sync.RWMutex
	printers map[string]Printer
}

func NewRegistry(printers ...Printer) (*Registry, error) {
	r := &Registry{printers: make(map[string]Printer, len(printers))}
	for _, p := range printers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds p, replacing any printer for the same command.
func (r *Registry) Register(p Printer) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printers[strings.ToLower(p.Command)] = p
	return nil
}

// Lookup finds the printer for the first word of commandLine.
func (r *Registry) Lookup(commandLine string) (Printer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.printers[CommandName(commandLine)]
	return p, ok
}

// Len returns the number of registered printers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.printers)
}
