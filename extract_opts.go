package unitypackage

import "log/slog"

// extractConfig holds configuration for extraction.
type extractConfig struct {
	overwrite  bool
	stagingDir string
	logger     *slog.Logger
	progress   ProgressFunc
}

// ExtractOption configures Extract and ExtractReader.
type ExtractOption func(*extractConfig)

// ExtractWithOverwrite allows replacing assets that already exist in the
// output tree. By default, an asset whose path or ".meta" sidecar exists is
// skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractWithStagingDir sets the parent directory for the staging root.
// The default is os.TempDir. Staging on the same filesystem as the output
// lets assets be placed with a plain rename.
func ExtractWithStagingDir(dir string) ExtractOption {
	return func(c *extractConfig) {
		c.stagingDir = dir
	}
}

// ExtractWithLogger sets the logger. Malformed groups are logged at warn level.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) {
		c.logger = logger
	}
}

// ExtractWithProgress sets a callback for progress events.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}

// ListOption configures List and ListReader.
type ListOption func(*listConfig)

type listConfig struct {
	logger   *slog.Logger
	progress ProgressFunc
}

// ListWithLogger sets the logger.
func ListWithLogger(logger *slog.Logger) ListOption {
	return func(c *listConfig) {
		c.logger = logger
	}
}

// ListWithProgress sets a callback for progress events.
func ListWithProgress(fn ProgressFunc) ListOption {
	return func(c *listConfig) {
		c.progress = fn
	}
}

// logOrDiscard returns logger, falling back to a discard logger if nil.
func logOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
