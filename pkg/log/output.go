package log

import (
	"io"
	"os"
)

// ConsoleOutput writes formatted entries to stderr.
type ConsoleOutput struct {
	w io.Writer
}

// NewConsoleOutput returns an Output writing to stderr.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{w: os.Stderr} }

// NewWriterOutput returns an Output writing to w. Used by tests to capture logs.
func NewWriterOutput(w io.Writer) *ConsoleOutput { return &ConsoleOutput{w: w} }

// Write writes the formatted entry.
func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	_, err := o.w.Write(formatted)
	return err
}

// Close is a no-op for console outputs.
func (o *ConsoleOutput) Close() error { return nil }

// MultiOutput fans each entry out to several outputs. The first write
// error wins but every output is still attempted.
type MultiOutput struct {
	outs []Output
}

// NewMultiOutput returns an Output wrapping outs.
func NewMultiOutput(outs ...Output) *MultiOutput { return &MultiOutput{outs: outs} }

// Write writes the entry to every wrapped output.
func (o *MultiOutput) Write(entry *Entry, formatted []byte) error {
	var first error
	for _, out := range o.outs {
		if err := out.Write(entry, formatted); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every wrapped output.
func (o *MultiOutput) Close() error {
	var first error
	for _, out := range o.outs {
		if err := out.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
