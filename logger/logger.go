package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

var (
	// Default is the default logger instance
	Default *Logger

	initOnce sync.Once
)

// Init initializes the logger on stderr so stdout stays free for tables and CSV.
// LOG_FORMAT=json switches from the console writer to plain JSON lines.
func Init() {
	InitWithWriter(os.Stderr)
}

// InitWithWriter initializes the logger on out.
func InitWithWriter(out io.Writer) {
	level := getLogLevel()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	if !strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	Default = &Logger{logger: zerolog.New(out).With().Timestamp().Logger()}

	Default.Debug().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// ensure initializes Default on first use when Init was never called (tests).
func ensure() {
	initOnce.Do(func() {
		if Default == nil {
			Init()
		}
	})
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if os.Getenv("PARKSCRAPER_ENVIRONMENT") == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// SetLevel overrides the global level, used by the --debug and --quiet flags.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Printf-style helpers on the default logger

func Debug(format string, v ...interface{}) {
	ensure()
	Default.Debug().Msgf(format, v...)
}

func Info(format string, v ...interface{}) {
	ensure()
	Default.Info().Msgf(format, v...)
}

func Warn(format string, v ...interface{}) {
	ensure()
	Default.Warn().Msgf(format, v...)
}

func Error(format string, v ...interface{}) {
	ensure()
	Default.Error().Msgf(format, v...)
}

// ForComponent creates a logger tagged with a component name
func ForComponent(component string) *Logger {
	ensure()
	return Default.WithField("component", component)
}

// ForFetcher creates a logger for a page fetcher
func ForFetcher(kind string) *Logger {
	return ForComponent("fetcher").WithField("fetcher", kind)
}

func ForPaginator() *Logger {
	return ForComponent("paginator")
}

// ForExtractor creates a logger for the extractor of one schema
func ForExtractor(schema string) *Logger {
	return ForComponent("extractor").WithField("schema", schema)
}

// ForSink creates a logger for the result file at path
func ForSink(path string) *Logger {
	return ForComponent("sink").WithField("path", path)
}

// ForPark creates a logger for the scrape of a single park
func ForPark(park string) *Logger {
	return ForComponent("campsite").WithField("park", park)
}

func ForWorker() *Logger {
	return ForComponent("worker")
}

func ForPublisher() *Logger {
	return ForComponent("publisher")
}

func ForCache() *Logger {
	return ForComponent("cache")
}
