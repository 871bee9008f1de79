package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const serverBinary = "mediahub-server"

var (
	startupTimeout = 15 * time.Second
	pollInterval   = 250 * time.Millisecond
)

// serverHealthy reports whether the server answers /health with status ok
func serverHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/health", nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&health) != nil {
		return false
	}
	return health.Status == "ok"
}

// locateServer finds the server executable. MEDIAHUB_SERVER_BIN wins,
// then the CLI's own directory, then PATH, then per-user installs.
func locateServer() (string, error) {
	if p := os.Getenv("MEDIAHUB_SERVER_BIN"); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("MEDIAHUB_SERVER_BIN: %w", err)
		}
		return p, nil
	}

	var candidates []string
	if self, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(self), serverBinary))
	}
	if p, err := exec.LookPath(serverBinary); err == nil {
		candidates = append(candidates, p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, "go", "bin", serverBinary),
			filepath.Join(home, ".local", "bin", serverBinary))
	}
	candidates = append(candidates, "/usr/local/bin/"+serverBinary)

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", errors.New(serverBinary + " not found, set MEDIAHUB_SERVER_BIN")
}

// launchServer runs the server binary, which forks its own daemon and exits
func launchServer(ctx context.Context) error {
	path, err := locateServer()
	if err != nil {
		return err
	}

	var args []string
	if configFile != "" {
		args = append(args, "-config", configFile)
	}
	if out, err := exec.CommandContext(ctx, path, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to start %s: %w: %s", serverBinary, err, out)
	}
	return nil
}

// ensureServerRunning starts the server when /health does not answer and
// waits until it does
func ensureServerRunning() error {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if serverHealthy(ctx) {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Server not running, starting...")
	if err := launchServer(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("server did not become healthy within %v", startupTimeout)
		case <-ticker.C:
			if serverHealthy(ctx) {
				fmt.Fprintln(os.Stderr, "Server started")
				return nil
			}
		}
	}
}
