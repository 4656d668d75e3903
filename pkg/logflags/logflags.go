package logflags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var vdf = false
var catalog = false
var exe = false
var engine = false
var scan = false

var logOut io.WriteCloser

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if !flag {
		return makeLogger(logrus.ErrorLevel, fields)
	}
	return makeLogger(logrus.DebugLevel, fields)
}

// VDF returns true if the binary KV decoder should log.
func VDF() bool {
	return vdf
}

// VDFLogger returns a logger for the binary KV decoder. Substituted keys
// are logged at warning level, so they show up even when the layer is
// disabled.
func VDFLogger() Logger {
	level := logrus.WarnLevel
	if vdf {
		level = logrus.DebugLevel
	}
	return makeLogger(level, Fields{"layer": "vdf"})
}

// Catalog returns true if the appinfo and packageinfo readers should log.
func Catalog() bool {
	return catalog
}

// CatalogLogger returns a logger for the catalog readers.
func CatalogLogger() Logger {
	return makeFlaggableLogger(catalog, Fields{"layer": "catalog"})
}

// Exe returns true if executable header probes should log.
func Exe() bool {
	return exe
}

// ExeLogger returns a logger for executable header probes.
func ExeLogger() Logger {
	return makeFlaggableLogger(exe, Fields{"layer": "exe"})
}

// Engine returns true if engine detection should log its misses.
func Engine() bool {
	return engine
}

// EngineLogger returns a logger for engine detection.
func EngineLogger() Logger {
	return makeFlaggableLogger(engine, Fields{"layer": "engine"})
}

// Scan returns true if library scans should log.
func Scan() bool {
	return scan
}

// ScanLogger returns a logger for library scans.
func ScanLogger() Logger {
	return makeFlaggableLogger(scan, Fields{"layer": "scan"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the layer flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "gamesniff-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %w", err)
			}
			logOut = fh
		}
	}
	if !logFlag {
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "engine"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch strings.TrimSpace(logcmd) {
		case "vdf":
			vdf = true
		case "catalog":
			catalog = true
		case "exe":
			exe = true
		case "engine":
			engine = true
		case "scan":
			scan = true
		case "all":
			vdf, catalog, exe, engine, scan = true, true, true, true, true
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
		logOut = nil
	}
}

// textFormatter writes "time level layer=x key=value msg" lines.
type textFormatter struct{}

var textFormatterInstance = &textFormatter{}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	fmt.Fprintf(b, "%s %s ", entry.Time.Format(time.RFC3339), entry.Level.String())

	if layer, ok := entry.Data["layer"]; ok {
		fmt.Fprintf(b, "layer=%v ", layer)
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "layer" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s=%v ", k, entry.Data[k])
	}

	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}
