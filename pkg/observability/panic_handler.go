package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with structured logging
//
// Usage in defer statements:
//
//	func backgroundLoop() {
//	    defer observability.RecoverPanic(logger, "session reaper")
//	    // ... code that might panic
//	}
//
// After logging, the panic is NOT re-raised. This keeps a panicking
// background goroutine from taking down the whole process.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
