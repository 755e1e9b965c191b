package unitypackage

import (
	"log/slog"

	"github.com/klauspost/compress/gzip"
)

// packConfig holds configuration for archive creation.
type packConfig struct {
	level      int
	stagingDir string
	logger     *slog.Logger
	progress   ProgressFunc
}

func newPackConfig(opts []PackOption) packConfig {
	cfg := packConfig{level: gzip.DefaultCompression}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// PackOption configures Pack, PackFromMetaList and PackTo.
type PackOption func(*packConfig)

// PackWithCompressionLevel sets the gzip compression level, from
// gzip.HuffmanOnly through gzip.BestCompression.
// The default is gzip.DefaultCompression.
func PackWithCompressionLevel(level int) PackOption {
	return func(c *packConfig) {
		c.level = level
	}
}

// PackWithStagingDir sets the parent directory for the staging root.
// The default is os.TempDir.
func PackWithStagingDir(dir string) PackOption {
	return func(c *packConfig) {
		c.stagingDir = dir
	}
}

// PackWithLogger sets the logger. Duplicate GUIDs are logged at warn level.
func PackWithLogger(logger *slog.Logger) PackOption {
	return func(c *packConfig) {
		c.logger = logger
	}
}

// PackWithProgress sets a callback for progress events.
func PackWithProgress(fn ProgressFunc) PackOption {
	return func(c *packConfig) {
		c.progress = fn
	}
}
