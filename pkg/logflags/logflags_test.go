package logflags

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestMakeLogger_usingLoggerFactory(t *testing.T) {
	if loggerFactory != nil {
		t.Fatalf("expected loggerFactory to be nil; but was <%v>", loggerFactory)
	}
	defer func() {
		loggerFactory = nil
	}()
	if logOut != nil {
		t.Fatalf("expected logOut to be nil; but was <%v>", logOut)
	}
	logOut = &bufferWriter{}
	defer func() {
		logOut = nil
	}()

	expectedLogger := &logrusLogger{}
	SetLoggerFactory(func(level logrus.Level, fields Fields, out io.Writer) Logger {
		if level != logrus.TraceLevel {
			t.Fatalf("expected level to be <%v>; but was <%v>", logrus.TraceLevel, level)
		}
		if len(fields) != 1 || fields["foo"] != "bar" {
			t.Fatalf("expected fields to be {'foo':'bar'}; but was <%v>", fields)
		}
		if out != logOut {
			t.Fatalf("expected out to be <%v>; but was <%v>", logOut, out)
		}
		return expectedLogger
	})

	actual := makeLogger(logrus.TraceLevel, Fields{"foo": "bar"})
	if actual != expectedLogger {
		t.Fatalf("expected actual to <%v>; but was <%v>", expectedLogger, actual)
	}
}

func TestMakeFlaggableLogger(t *testing.T) {
	for _, tc := range []struct {
		flag  bool
		level logrus.Level
	}{
		{false, logrus.ErrorLevel},
		{true, logrus.DebugLevel},
	} {
		actual := makeFlaggableLogger(tc.flag, Fields{"foo": "bar"})
		actualEntry, expectedType := actual.(*logrusLogger)
		if !expectedType {
			t.Fatalf("expected actual to be of type <%v>; but was <%v>", reflect.TypeOf((*logrusLogger)(nil)), reflect.TypeOf(actual))
		}
		if actualEntry.Entry.Logger.Level != tc.level {
			t.Fatalf("flag %v: expected level <%v>; but was <%v>", tc.flag, tc.level, actualEntry.Logger.Level)
		}
		if len(actualEntry.Entry.Data) != 1 || actualEntry.Data["foo"] != "bar" {
			t.Fatalf("expected actualEntry.Entry.Data to be {'foo':'bar'}; but was <%v>", actualEntry.Data)
		}
	}
}

func TestVDFLoggerWarnsWhenDisabled(t *testing.T) {
	actualEntry := VDFLogger().(*logrusLogger)
	if actualEntry.Entry.Logger.Level != logrus.WarnLevel {
		t.Fatalf("expected level <%v>; but was <%v>", logrus.WarnLevel, actualEntry.Logger.Level)
	}
}

func TestSetup(t *testing.T) {
	defer func() {
		vdf, catalog, exe, engine, scan = false, false, false, false, false
	}()
	if err := Setup(false, "engine", ""); err != errLogstrWithoutLog {
		t.Fatalf("expected <%v>; but was <%v>", errLogstrWithoutLog, err)
	}
	if err := Setup(true, "catalog, scan", ""); err != nil {
		t.Fatal(err)
	}
	if !Catalog() || !Scan() || Engine() || VDF() || Exe() {
		t.Fatalf("unexpected flags: vdf=%v catalog=%v exe=%v engine=%v scan=%v", vdf, catalog, exe, engine, scan)
	}
	if err := Setup(true, "", ""); err != nil {
		t.Fatal(err)
	}
	if !Engine() {
		t.Fatalf("engine should be the default layer")
	}
}

func TestTextFormatter(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "key index 9 out of range",
		Data:    logrus.Fields{"layer": "vdf", "path": "appinfo.vdf"},
	}
	out, err := textFormatterInstance.Format(entry)
	if err != nil {
		t.Fatal(err)
	}
	const want = "2024-03-01T10:00:00Z warning layer=vdf path=appinfo.vdf key index 9 out of range\n"
	if string(out) != want {
		t.Fatalf("expected <%q>; but was <%q>", want, out)
	}
	if !strings.HasSuffix(string(out), "\n") {
		t.Fatalf("missing newline")
	}
}

type bufferWriter struct {
	bytes.Buffer
}

func (bw bufferWriter) Close() error {
	return nil
}
