package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL   string
	noAutoStart bool
	jsonOutput  bool
	configFile  string
	rootCmd     = &cobra.Command{
		Use:   "mediahub",
		Short: "mediahub CLI - unified local and Jellyfin media catalog",
		Long:  `A command-line interface for browsing the unified media catalog and managing downloads from a Jellyfin server.`,
	}
	httpClient = &http.Client{Timeout: 5 * time.Minute}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file handed to an auto-started server")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Print raw JSON responses")

	rootCmd.AddCommand(mediaCmd)
	rootCmd.AddCommand(showsCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(validationCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(healthCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// apiCall sends a request to the server and decodes the JSON answer into out
func apiCall(method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if jsonOutput {
		var pretty bytes.Buffer
		if json.Indent(&pretty, data, "", "  ") == nil {
			fmt.Println(pretty.String())
		} else {
			fmt.Println(string(data))
		}
		return errPrinted
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// errPrinted signals that the raw response was already printed
var errPrinted = errors.New("response printed")

// run wraps a command body with server auto-start and error reporting
func run(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		ensureServer()
		if err := fn(cmd, args); err != nil && !errors.Is(err, errPrinted) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show server health",
	Run: run(func(cmd *cobra.Command, args []string) error {
		var health struct {
			Status        string  `json:"status"`
			Version       string  `json:"version"`
			UptimeSeconds float64 `json:"uptime_seconds"`
		}
		if err := apiCall(http.MethodGet, "/health", nil, &health); err != nil {
			return err
		}
		fmt.Printf("Status:  %s\n", health.Status)
		fmt.Printf("Version: %s\n", health.Version)
		fmt.Printf("Uptime:  %s\n", (time.Duration(health.UptimeSeconds) * time.Second).String())
		return nil
	}),
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
