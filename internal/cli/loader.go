package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/littleponywork/IPMES/internal/engine"
	"github.com/littleponywork/IPMES/internal/input"
	"github.com/littleponywork/IPMES/internal/pattern"
)

// Error codes reported in CLI responses besides the pattern.ErrorCode values.
const (
	ErrCodeNotFound    = "NOT_FOUND"    // Pattern, data graph or database file missing
	ErrCodeInputFormat = "INPUT_FORMAT" // Malformed data graph row
	ErrCodeStore       = "STORE"        // Database open/read/write failure
	ErrCodeRun         = "RUN_FAILED"   // Engine failure
	ErrCodeGeneric     = "ERROR"
)

// loadPattern reads a pattern file. forceRegex switches the pattern to
// regular-expression signatures and revalidates it.
func loadPattern(path string, forceRegex bool) (*pattern.Pattern, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("pattern file: %w", err)
	}
	p, err := pattern.Load(path)
	if err != nil {
		return nil, err
	}
	if forceRegex && !p.UseRegex {
		p.UseRegex = true
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// errorCode maps an error to the code reported in CLI output.
func errorCode(err error) string {
	var pe *pattern.ParseError
	if errors.As(err, &pe) {
		return string(pe.Code)
	}
	var fe *input.FormatError
	if errors.As(err, &fe) {
		return ErrCodeInputFormat
	}
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}

// configureLogging installs the default slog handler: debug level under
// --verbose, info otherwise. Logs go to w, never to command output.
func configureLogging(verbose bool, w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
