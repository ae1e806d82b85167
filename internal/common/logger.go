package common

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
)

// Logger is the engine's sole logging facility: a thin wrapper around the
// standard logger with leveled Info/Error output. Silent mode (-s) drops
// everything below an error; -d raises verbosity.
type Logger struct {
	impl      *log.Logger
	verbosity int
	silent    bool
}

// MakeLogger builds a logger writing to stderr. An Info line logged at level
// n is shown only when verbosity >= n; Run passes 1 by default (link and
// spawn lines) and 2 with -d/--debug. silent suppresses everything except
// Error, independent of verbosity.
func MakeLogger(verbosity int, silent bool) *Logger {
	return &Logger{
		impl:      log.New(os.Stderr, "", 0),
		verbosity: verbosity,
		silent:    silent,
	}
}

func formatStr(prefix string, v ...interface{}) string {
	return fmt.Sprintf("%s %s %s", time.Now().Format("15:04:05"), prefix, fmt.Sprintln(v...))
}

// Info prints a progress line gated by verbosity (0 = always shown unless silent).
func (logger *Logger) Info(verbosity int, v ...interface{}) {
	if logger.silent || logger.verbosity < verbosity {
		return
	}
	_ = logger.impl.Output(0, formatStr("INFO", v...))
}

// Error always prints, even in silent mode, matching spec.md's error-handling policy
// of printing diagnostics to stderr before exiting.
func (logger *Logger) Error(v ...interface{}) {
	_ = logger.impl.Output(0, color.RedString(formatStr("ERROR", v...)))
}

// Message prints a pre/post-build message verbatim (no timestamp prefix),
// matching mace_print_message's plain printf behavior.
func (logger *Logger) Message(message string) {
	if message == "" || logger.silent {
		return
	}
	fmt.Println(color.CyanString(message))
}

// TargetStart announces the beginning of a target's build, colorized like a
// build-tool banner; suppressed in silent mode.
func (logger *Logger) TargetStart(name string) {
	if logger.silent {
		return
	}
	fmt.Println(color.GreenString("Build target %s", name))
}
