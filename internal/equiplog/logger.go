// Package equiplog defines the logging interface the proc-macro host driver
// takes, so it does not depend on a concrete logging backend. The CLI
// passes Nop.
//
// Grounded on pkg/plugin.Logger and pkg/lsp.Logger in the teacher, both of
// which are small printf-style interfaces implemented by a zap-backed
// adapter at the composition root.
package equiplog

// Logger is implemented by anything that can record leveled, printf-style
// diagnostic output.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Nop is a Logger that discards everything, used by tests and by callers
// that don't care about diagnostic output.
type Nop struct{}

func (Nop) Debugf(string, ...interface{}) {}
func (Nop) Infof(string, ...interface{})  {}
func (Nop) Warnf(string, ...interface{})  {}
func (Nop) Errorf(string, ...interface{}) {}
