package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Destinations for log output. "local" is a console writer on stderr, "gcp"
// is structured JSON on stdout for a log collector, "both" duplicates.
const (
	DestLocal = "local"
	DestGCP   = "gcp"
	DestBoth  = "both"
)

// Setup configures the global zerolog defaults and returns the root logger.
func Setup(level, destination string) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := parseLevel(level)
	if err != nil {
		return zerolog.Logger{}, err
	}

	var w io.Writer
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	switch strings.ToLower(destination) {
	case DestLocal, "":
		w = console
	case DestGCP:
		w = os.Stdout
	case DestBoth:
		w = zerolog.MultiLevelWriter(console, os.Stdout)
	default:
		return zerolog.Logger{}, fmt.Errorf("unknown log destination %q", destination)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "INFO", "":
		return zerolog.InfoLevel, nil
	case "WARNING", "WARN":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	case "CRITICAL", "FATAL":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
