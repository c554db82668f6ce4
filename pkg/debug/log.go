// Package debug routes the debug output of the runtime packages to a
// single logger.
package debug

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/pupperjs/core-sub000/pkg/reactive"
	"github.com/pupperjs/core-sub000/pkg/renderer"
	"github.com/pupperjs/core-sub000/pkg/renderer/dom"
	"github.com/pupperjs/core-sub000/pkg/scheduler"
)

var (
	mu     sync.Mutex
	logger *log.Logger
)

// EnableLogging enables debug logging for the reactive, scheduler,
// renderer and dom packages
func EnableLogging(w io.Writer) {
	mu.Lock()
	logger = log.New(w, "[pupper] ", log.Ltime|log.Lmicroseconds)
	mu.Unlock()

	scheduler.SetDebugLog(Log)
	reactive.SetDebugLog(Log)
	renderer.SetDebugLog(Log)
	dom.SetDebugLog(Log)
}

// DisableLogging turns debug logging off again
func DisableLogging() {
	mu.Lock()
	logger = nil
	mu.Unlock()

	scheduler.SetDebugLog(nil)
	reactive.SetDebugLog(nil)
	renderer.SetDebugLog(nil)
	dom.SetDebugLog(nil)
}

// Enabled reports whether logging is on
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return logger != nil
}

// Log logs a message
func Log(args ...interface{}) {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l != nil {
		l.Output(2, fmt.Sprintln(args...))
	}
}

// Logf logs a formatted message
func Logf(format string, args ...interface{}) {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l != nil {
		l.Output(2, fmt.Sprintf(format, args...))
	}
}
