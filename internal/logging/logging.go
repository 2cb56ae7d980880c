// ABOUTME: Logger setup shared by the player and feed commands
// ABOUTME: Configures charmbracelet/log level and output file as the process default
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Setup installs the default logger. Logs always go to path when it is
// set; they also go to stderr unless a TUI owns the terminal. The returned
// closer releases the log file.
func Setup(level, path string, tui bool) (io.Closer, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var (
		writers []io.Writer
		closer  io.Closer = nopCloser{}
	)
	if path != "" {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}
	if !tui {
		writers = append(writers, os.Stderr)
	}

	logger := log.NewWithOptions(io.MultiWriter(writers...), log.Options{
		Level:           lvl,
		ReportTimestamp: true,
	})
	log.SetDefault(logger)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
