package depresolve

import (
	"log/slog"
	"os"

	"github.com/buildgraph/depresolve/internal/logging"
)

// resolveLogger is the traversal's logging seam: a thin wrapper over [slog.Logger] so call sites
// read as plain log statements rather than threading a logger through every function signature by
// hand. Node visits, conflict resolutions, and module replacements log at verbose/debug; callers that want
// quieter output raise the handler's level, the same way the CLI's -v/-q flags do.
type resolveLogger struct {
	*slog.Logger
}

func defaultLogger() *resolveLogger {
	return &resolveLogger{slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.LevelNotice}))}
}

// NewLogger wraps an existing [slog.Logger] for use as a [GraphBuilder.Logger], letting a caller
// control level and destination with the standard library's own handler options.
func NewLogger(l *slog.Logger) *resolveLogger { return &resolveLogger{l} }
