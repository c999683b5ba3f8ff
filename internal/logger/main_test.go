package logger

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func validLog() Log {
	return Log{
		LogLevel:    "info",
		AppName:     "tenantauth",
		ServiceName: "identity-core",
		Console:     Console{Enabled: true},
	}
}

func TestInit_Valid(t *testing.T) {
	if err := Init(validLog()); err != nil {
		t.Fatalf("expected init to succeed, got %v", err)
	}

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected global level info, got %s", zerolog.GlobalLevel())
	}
}

func TestInit_BadLevel(t *testing.T) {
	cfg := validLog()
	cfg.LogLevel = "loud"

	if err := Init(cfg); err == nil {
		t.Fatal("expected error for unsupported log level")
	}
}

func TestInit_MissingNames(t *testing.T) {
	cfg := validLog()
	cfg.ServiceName = ""

	if err := Init(cfg); !errors.Is(err, ErrServiceNameIsEmpty) {
		t.Fatalf("expected ErrServiceNameIsEmpty, got %v", err)
	}

	cfg = validLog()
	cfg.AppName = ""

	if err := Init(cfg); !errors.Is(err, ErrAppNameIsEmpty) {
		t.Fatalf("expected ErrAppNameIsEmpty, got %v", err)
	}
}

func TestWriteLevel_RoutesByLevel(t *testing.T) {
	var errBuf, infoBuf, warnBuf captureWriter

	lw := LevelWriter{
		ErrorWriter: &errBuf,
		InfoWriter:  &infoBuf,
		WarnWriter:  &warnBuf,
	}

	if _, err := lw.WriteLevel(zerolog.ErrorLevel, []byte("e")); err != nil {
		t.Fatalf("write error level: %v", err)
	}

	if _, err := lw.WriteLevel(zerolog.WarnLevel, []byte("w")); err != nil {
		t.Fatalf("write warn level: %v", err)
	}

	if _, err := lw.WriteLevel(zerolog.InfoLevel, []byte("i")); err != nil {
		t.Fatalf("write info level: %v", err)
	}

	if n, err := lw.WriteLevel(zerolog.Disabled, []byte("x")); n != 0 || err != nil {
		t.Fatalf("disabled level must be dropped, got n=%d err=%v", n, err)
	}

	if string(errBuf) != "e" || string(infoBuf) != "i" || string(warnBuf) != "w" {
		t.Fatalf("unexpected routing: err=%q info=%q warn=%q", errBuf, infoBuf, warnBuf)
	}
}

type captureWriter []byte

func (c *captureWriter) Write(p []byte) (int, error) {
	*c = append(*c, p...)
	return len(p), nil
}
