package safe

import (
	"log/slog"
	"runtime/debug"
)

// Run executes fn and recovers from any panic, logging the stack trace.
func Run(fn func()) {
	RunWithComponent(fn, "safe.Run")
}

// RunWithComponent is like Run but tags the log entry with the caller's component name.
func RunWithComponent(fn func(), component string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("component", component),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	fn()
}
