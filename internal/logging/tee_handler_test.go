package logging_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"demoforge/internal/logging"
)

func TestTeeLoggerWritesToAllHandlers(t *testing.T) {
	var primary, mirror bytes.Buffer
	base := slog.New(slog.NewTextHandler(&primary, &slog.HandlerOptions{Level: slog.LevelInfo}))
	tee := logging.TeeLogger(base, slog.NewJSONHandler(&mirror, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tee.With(logging.String(logging.FieldProjectID, "p1")).Debug("debug only")
	tee.Info("both")

	if strings.Contains(primary.String(), "debug only") {
		t.Fatalf("primary handler should filter debug, got %q", primary.String())
	}
	if !strings.Contains(primary.String(), "both") {
		t.Fatalf("primary missing info line: %q", primary.String())
	}
	if !strings.Contains(mirror.String(), "debug only") || !strings.Contains(mirror.String(), `"project_id":"p1"`) {
		t.Fatalf("mirror missing debug line with attrs: %q", mirror.String())
	}
	if !strings.Contains(mirror.String(), "both") {
		t.Fatalf("mirror missing info line: %q", mirror.String())
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.TeeLogger(nil, slog.NewTextHandler(&buf, nil))
	logger.Info("only handler")
	if !strings.Contains(buf.String(), "only handler") {
		t.Fatalf("expected output, got %q", buf.String())
	}
	logging.TeeLogger(nil).Info("discarded")
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestTeeLoggerMirrorFailureStillWritesPrimary(t *testing.T) {
	var primary bytes.Buffer
	base := slog.New(slog.NewTextHandler(&primary, nil))
	mirror := failingHandler{slog.NewTextHandler(&bytes.Buffer{}, nil)}
	handler := logging.TeeLogger(base, mirror).Handler()

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "run started", 0)
	err := handler.Handle(context.Background(), record)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected the mirror error, got %v", err)
	}
	if !strings.Contains(primary.String(), "run started") {
		t.Fatalf("primary handler skipped: %q", primary.String())
	}
}
