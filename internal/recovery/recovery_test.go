package recovery

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestRecoverWithLogRecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer RecoverWithLog(logger, "testGoroutine")
		panic("test panic")
	}()
	wg.Wait()

	output := buf.String()
	for _, want := range []string{"panic recovered", "testGoroutine", "test panic", "stack="} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in log output, got: %s", want, output)
		}
	}
}

func TestRecoverWithLogNoopOnNoPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer RecoverWithLog(logger, "normalGoroutine")
	}()
	wg.Wait()

	if buf.Len() > 0 {
		t.Errorf("expected no output when no panic, got: %s", buf.String())
	}
}

func TestRecoverWithLogAllowsGoroutineToContinueAfterDefer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var wg sync.WaitGroup
	wg.Add(1)
	completed := false
	go func() {
		defer wg.Done()
		defer RecoverWithLog(logger, "goroutine")
		defer func() { completed = true }()
		panic("boom")
	}()
	wg.Wait()

	if !completed {
		t.Error("expected deferred statements before RecoverWithLog's defer to still run")
	}
}
