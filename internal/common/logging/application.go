package logging

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logConfigPathEnvVar = "JOBBENCH_LOG_CONFIG"
	RFC3339Milli        = "2006-01-02T15:04:05.000Z07:00"
)

//go:embed logging.yaml
var defaultConfig []byte

// MustConfigureApplicationLogging sets up logging suitable for an application. Logging configuration is loaded from
// a filepath given by the JOBBENCH_LOG_CONFIG environmental variable or from the embedded defaults if this var is
// unset. Note that this function will immediately shut down the application if it fails.
func MustConfigureApplicationLogging() {
	if err := ConfigureApplicationLogging(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error initializing logging: "+err.Error())
		os.Exit(1)
	}
}

// ConfigureApplicationLogging sets up logging suitable for an application. Logging configuration is loaded from
// a filepath given by the JOBBENCH_LOG_CONFIG environmental variable or from the embedded defaults if this var is
// unset.
func ConfigureApplicationLogging() error {
	logConfig, err := readConfig(os.Getenv(logConfigPathEnvVar))
	if err != nil {
		return err
	}
	logger, err := newApplicationLogger(logConfig, os.Stdout)
	if err != nil {
		return err
	}
	ReplaceStdLogger(logger)
	return nil
}

func newApplicationLogger(logConfig Config, stdout io.Writer) (*Logger, error) {
	zerolog.TimeFieldFormat = RFC3339Milli
	zerolog.CallerMarshalFunc = shortCallerEncoder

	var writers []io.Writer
	consoleLevel, err := parseLogLevel(logConfig.Console.Level)
	if err != nil {
		return nil, err
	}
	writers = append(writers, newWriter(stdout, consoleLevel, consoleFormat(logConfig.Console.Format, stdout)))

	if logConfig.File.Enabled {
		fileLevel, err := parseLogLevel(logConfig.File.Level)
		if err != nil {
			return nil, err
		}
		rotation := logConfig.File.Rotation
		fileOut := &lumberjack.Logger{
			Filename:   logConfig.File.LogFile,
			MaxSize:    rotation.MaxSizeMb,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAgeDays,
			Compress:   rotation.Compress,
		}
		if !rotation.Enabled {
			// lumberjack never rotates below this size.
			fileOut.MaxSize = 1 << 20
		}
		format := logConfig.File.Format
		if format == FormatColourful {
			format = FormatText
		}
		writers = append(writers, newWriter(fileOut, fileLevel, format))
	}

	z := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Caller().Logger()
	return FromZerolog(z), nil
}

// consoleFormat downgrades colourful output to plain text when stdout is redirected, e.g. into a stage log file.
func consoleFormat(format LogFormat, out io.Writer) LogFormat {
	if format != FormatColourful {
		return format
	}
	f, ok := out.(*os.File)
	if !ok {
		return FormatText
	}
	info, err := f.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return FormatText
	}
	return format
}

func newWriter(out io.Writer, level zerolog.Level, format LogFormat) *FilteredLevelWriter {
	if format == FormatJSON {
		return &FilteredLevelWriter{level: level, writer: out}
	}
	return &FilteredLevelWriter{level: level, writer: consoleWriter(out, format)}
}

func consoleWriter(out io.Writer, format LogFormat) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: RFC3339Milli,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("%s", i))
		},
		FormatCaller: func(i interface{}) string {
			return filepath.Base(fmt.Sprintf("%s", i))
		},
		NoColor: format != FormatColourful,
	}
}

func shortCallerEncoder(_ uintptr, file string, line int) string {
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// FilteredLevelWriter only writes events at or above its level.
type FilteredLevelWriter struct {
	writer io.Writer
	level  zerolog.Level
}

func (w *FilteredLevelWriter) Write(p []byte) (int, error) {
	return w.writer.Write(p)
}

func (w *FilteredLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= w.level {
		return w.writer.Write(p)
	}
	return len(p), nil
}
