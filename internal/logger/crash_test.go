package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCrashHandlerSetContext(t *testing.T) {
	globalContext = &CrashContext{}

	SetBasePath("/tmp/test-obbywatch")
	SetVersion("1.0.0-test")
	SetCommand("test command")
	SetLastInput("test input")

	globalContext.mu.RLock()
	defer globalContext.mu.RUnlock()

	if globalContext.basePath != "/tmp/test-obbywatch" {
		t.Errorf("expected basePath '/tmp/test-obbywatch', got %q", globalContext.basePath)
	}
	if globalContext.version != "1.0.0-test" {
		t.Errorf("expected version '1.0.0-test', got %q", globalContext.version)
	}
	if globalContext.command != "test command" {
		t.Errorf("expected command 'test command', got %q", globalContext.command)
	}
	if globalContext.lastInput != "test input" {
		t.Errorf("expected lastInput 'test input', got %q", globalContext.lastInput)
	}
}

func TestCrashHandlerSetLastInputTruncation(t *testing.T) {
	globalContext = &CrashContext{}

	longInput := strings.Repeat("a", 1000)
	SetLastInput(longInput)

	globalContext.mu.RLock()
	defer globalContext.mu.RUnlock()

	if len(globalContext.lastInput) > 600 {
		t.Errorf("expected input to be truncated, got length %d", len(globalContext.lastInput))
	}
	if !strings.Contains(globalContext.lastInput, "[truncated]") {
		t.Error("expected truncated input to contain '[truncated]'")
	}
}

func TestCrashHandlerCreateCrashLog(t *testing.T) {
	globalContext = &CrashContext{
		version:   "1.0.0",
		command:   "test",
		lastInput: "user input",
	}

	log := createCrashLog("test panic")

	if log.PanicValue != "test panic" {
		t.Errorf("expected PanicValue 'test panic', got %q", log.PanicValue)
	}
	if log.Version != "1.0.0" {
		t.Errorf("expected Version '1.0.0', got %q", log.Version)
	}
	if log.Command != "test" {
		t.Errorf("expected Command 'test', got %q", log.Command)
	}
	if log.LastInput != "user input" {
		t.Errorf("expected LastInput 'user input', got %q", log.LastInput)
	}
	if log.StackTrace == "" {
		t.Error("expected non-empty StackTrace")
	}
	if log.GoVersion == "" {
		t.Error("expected non-empty GoVersion")
	}
}

func TestCrashHandlerFormatCrashLog(t *testing.T) {
	log := CrashLog{
		Timestamp:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Version:    "1.0.0",
		Command:    "test",
		PanicValue: "test panic",
		StackTrace: "goroutine 1 [running]:\nmain.main()",
		LastInput:  "user input",
		GoVersion:  "go1.24.6",
		OS:         "linux",
		Arch:       "amd64",
	}

	formatted := formatCrashLog(log)

	expectedStrings := []string{
		"OBBYWATCH CRASH LOG",
		"Timestamp: 2026-01-01T12:00:00Z",
		"Version:   1.0.0",
		"Command:   test",
		"Go:        go1.24.6",
		"OS/Arch:   linux/amd64",
		"PANIC VALUE",
		"test panic",
		"STACK TRACE",
		"goroutine 1 [running]",
		"LAST AGENT INPUT",
		"user input",
	}

	for _, expected := range expectedStrings {
		if !strings.Contains(formatted, expected) {
			t.Errorf("expected formatted log to contain %q", expected)
		}
	}
}

func TestCrashHandlerWriteCrashLog(t *testing.T) {
	tmpDir := t.TempDir()
	basePath := filepath.Join(tmpDir, ".obbywatch")

	globalContext = &CrashContext{
		basePath: basePath,
		version:  "1.0.0",
		command:  "test",
	}

	log := CrashLog{
		Timestamp:  time.Now(),
		Version:    "1.0.0",
		Command:    "test",
		PanicValue: "test panic",
		StackTrace: "test stack",
		GoVersion:  "go1.24",
		OS:         "test",
		Arch:       "test",
	}

	if err := writeCrashLog(log); err != nil {
		t.Fatalf("writeCrashLog failed: %v", err)
	}

	crashDir := filepath.Join(basePath, CrashLogDir)
	if _, err := os.Stat(crashDir); os.IsNotExist(err) {
		t.Error("expected crash log directory to be created")
	}

	logs, err := ListCrashLogs()
	if err != nil {
		t.Fatalf("ListCrashLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("expected 1 crash log, got %d", len(logs))
	}

	if len(logs) > 0 {
		content, err := ReadCrashLog(logs[0])
		if err != nil {
			t.Fatalf("ReadCrashLog failed: %v", err)
		}
		if !strings.Contains(content, "test panic") {
			t.Error("expected crash log to contain panic value")
		}
	}
}

func TestCrashHandlerCleanOldLogs(t *testing.T) {
	tmpDir := t.TempDir()
	basePath := filepath.Join(tmpDir, ".obbywatch")
	crashDir := filepath.Join(basePath, CrashLogDir)

	if err := os.MkdirAll(crashDir, 0o755); err != nil {
		t.Fatalf("failed to create crash dir: %v", err)
	}

	globalContext = &CrashContext{basePath: basePath}

	for i := 0; i < MaxCrashLogs+5; i++ {
		filename := filepath.Join(crashDir, "crash_20260101_1200"+string(rune('0'+i%10))+string(rune('0'+i/10))+".log")
		if err := os.WriteFile(filename, []byte("test"), 0o644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
	}

	if err := cleanOldCrashLogs(crashDir); err != nil {
		t.Fatalf("cleanOldCrashLogs failed: %v", err)
	}

	logs, err := ListCrashLogs()
	if err != nil {
		t.Fatalf("ListCrashLogs failed: %v", err)
	}
	if len(logs) != MaxCrashLogs {
		t.Errorf("expected %d crash logs after cleanup, got %d", MaxCrashLogs, len(logs))
	}
}

func TestCrashHandlerGetCrashLogPath(t *testing.T) {
	globalContext = &CrashContext{basePath: "/tmp/test"}

	testTime := time.Date(2026, 1, 15, 14, 30, 45, 0, time.UTC)
	path := getCrashLogPath(testTime)

	expectedPath := "/tmp/test/crash_logs/crash_20260115_143045.log"
	if path != expectedPath {
		t.Errorf("expected path %q, got %q", expectedPath, path)
	}
}

func TestCrashHandlerDefaultBasePath(t *testing.T) {
	globalContext = &CrashContext{}

	dir := getCrashLogDir()
	expected := ".obbywatch/crash_logs"
	if dir != expected {
		t.Errorf("expected default dir %q, got %q", expected, dir)
	}
}
