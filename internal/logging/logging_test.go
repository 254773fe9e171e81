package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stlalpha/v3toss/internal/config"
)

func TestDebugDisabled(t *testing.T) {
	DebugEnabled = false
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	Debug("this should not appear")

	if buf.Len() > 0 {
		t.Errorf("Debug output when disabled: %s", buf.String())
	}
}

func TestDebugEnabled(t *testing.T) {
	DebugEnabled = true
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	Debug("test message %d", 42)

	if !bytes.Contains(buf.Bytes(), []byte("DEBUG: test message 42")) {
		t.Errorf("Expected debug output, got: %s", buf.String())
	}
	DebugEnabled = false
}

func TestSetupWritesLogFile(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	path := filepath.Join(t.TempDir(), "logs", "v3toss.log")

	closer, err := Setup(config.LogConfig{File: path})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Printf("INFO: rotated output")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Contains(data, []byte("INFO: rotated output")) {
		t.Errorf("log file content: got %q", data)
	}
}

func TestSetupDebugFlag(t *testing.T) {
	defer func() { DebugEnabled = false }()
	closer, err := Setup(config.LogConfig{Debug: true})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	closer.Close()
	if !DebugEnabled {
		t.Error("Expected debug logging to be enabled")
	}
}

func TestSetupDebugEnvironment(t *testing.T) {
	defer func() { DebugEnabled = false }()
	DebugEnabled = false
	t.Setenv("DEBUG", "1")
	closer, err := Setup(config.LogConfig{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	closer.Close()
	if !DebugEnabled {
		t.Error("Expected DEBUG=1 to enable debug logging")
	}
}
