// Package recovery guards the background goroutine cryptarc spawns (the
// key agent's reaper in keyagent.Client.Spawn) so a panic in it cannot
// take down the process silently.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// RecoverWithLog recovers a panic in the current goroutine and logs it with
// the given name identifying which goroutine it was. Defer this as the
// first statement in any goroutine that must not crash its parent process.
func RecoverWithLog(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		logger.Error("panic recovered",
			"goroutine", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()))
	}
}
