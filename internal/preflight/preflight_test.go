package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gatewarden/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckSerialDevice(t *testing.T) {
	dir := t.TempDir()
	node := filepath.Join(dir, "ttyUSB0")
	if err := os.WriteFile(node, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if result := CheckSerialDevice("relay", node); !result.Passed {
		t.Fatalf("expected pass for writable node, got: %s", result.Detail)
	}
	if result := CheckSerialDevice("relay", filepath.Join(dir, "ttyUSB9")); result.Passed {
		t.Fatal("expected failure for missing device")
	}
	if result := CheckSerialDevice("relay", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := CheckSerialDevice("relay", " "); result.Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestCheckDetector_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest_result" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	result := CheckDetector(context.Background(), srv.URL+"/", time.Second)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckDetector_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if result := CheckDetector(context.Background(), srv.URL, time.Second); result.Passed {
		t.Fatal("expected failure for 502")
	}
}

func TestCheckDetector_MissingURL(t *testing.T) {
	if result := CheckDetector(context.Background(), "", time.Second); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	results := RunAll(context.Background(), &cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesHardwareWhenEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Detector.Enabled = true
	cfg.Detector.BaseURL = srv.URL
	cfg.Actuator.Enabled = true
	cfg.Actuator.Device = filepath.Join(t.TempDir(), "missing-tty")

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %+v", results)
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Barrier relay" {
		t.Fatalf("expected only the relay check to fail, got %+v", failed)
	}
}

func TestFromConfigDisabled(t *testing.T) {
	cfg := config.Default()
	if r := CheckDetectorFromConfig(context.Background(), &cfg); !r.Passed || r.Detail != "Disabled" {
		t.Fatalf("unexpected detector result: %+v", r)
	}
	if r := CheckActuatorFromConfig(&cfg); !r.Passed || r.Detail != "Disabled" {
		t.Fatalf("unexpected actuator result: %+v", r)
	}
	if r := CheckActuatorFromConfig(nil); r.Passed {
		t.Fatal("nil config should not pass")
	}
}
