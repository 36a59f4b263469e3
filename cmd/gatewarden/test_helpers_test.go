package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gatewarden/internal/config"
	"gatewarden/internal/daemon"
	"gatewarden/internal/gate"
	"gatewarden/internal/logging"
	"gatewarden/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
}

// setupCLITestEnv starts an in-process daemon with a one-reading stability
// threshold and writes a config file pointing at its API.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t,
		testsupport.WithThreshold(1),
		testsupport.WithCredential("alice", "ABC123"),
	)
	j := testsupport.MustOpenJournal(t, cfg)
	opts, err := gate.OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	opts.Journal = j
	g, err := gate.New(opts)
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Deps{Gate: g, Journal: j})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg, d.APIAddr())

	return &cliTestEnv{cfg: cfg, daemon: d, configPath: configPath}
}

// setupOfflineEnv writes a config whose API address has nothing listening.
func setupOfflineEnv(t *testing.T) (*config.Config, string) {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg, closedAddr(t))
	return cfg, configPath
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, apiBind string) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\nstate_dir = %q\nlog_dir = %q\napi_bind = %q\n\n", cfg.Paths.StateDir, cfg.Paths.LogDir, apiBind)
	fmt.Fprintf(&b, "[gate]\nstability_threshold = %d\n\n", cfg.Gate.StabilityThreshold)
	for _, cam := range cfg.Cameras {
		fmt.Fprintf(&b, "[[cameras]]\nid = %q\ndirection = %q\n\n", cam.ID, cam.Direction)
	}
	for _, cred := range cfg.Credentials {
		quoted := make([]string, 0, len(cred.Plates))
		for _, p := range cred.Plates {
			quoted = append(quoted, fmt.Sprintf("%q", p))
		}
		fmt.Fprintf(&b, "[[credentials]]\nuser_id = %q\nplates = [%s]\n\n", cred.UserID, strings.Join(quoted, ", "))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
