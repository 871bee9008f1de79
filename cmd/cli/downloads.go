package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/yourusername/mediahub-go/internal/domain"
)

var downloadCmd = &cobra.Command{
	Use:     "download",
	Aliases: []string{"downloads", "dl"},
	Short:   "Manage transfers",
}

var downloadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transfers",
	Run: run(func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		path := "/api/v1/downloads"
		if status != "" {
			path += "?status=" + url.QueryEscape(status)
		}

		var resp struct {
			Downloads []*domain.DownloadTask `json:"downloads"`
		}
		if err := apiCall(http.MethodGet, path, nil, &resp); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tFILE")
		for _, t := range resp.Downloads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%5.1f%%\t%s\n",
				t.TaskID,
				truncate(t.Title, 30),
				t.Status,
				t.Progress*100,
				truncate(t.FilePath, 50))
		}
		return w.Flush()
	}),
}

var downloadGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show transfer details",
	Args:  cobra.ExactArgs(1),
	Run: run(func(cmd *cobra.Command, args []string) error {
		var t domain.DownloadTask
		if err := apiCall(http.MethodGet, "/api/v1/downloads/"+url.PathEscape(args[0]), nil, &t); err != nil {
			return err
		}
		fmt.Printf("Download Details:\n")
		fmt.Printf("  ID:       %s\n", t.TaskID)
		fmt.Printf("  Media:    %s\n", t.MediaID)
		fmt.Printf("  Title:    %s\n", t.Title)
		fmt.Printf("  Status:   %s\n", t.Status)
		fmt.Printf("  Progress: %.1f%% (%d/%d bytes)\n", t.Progress*100, t.BytesReceived, t.TotalSizeBytes)
		fmt.Printf("  File:     %s\n", t.FilePath)
		if t.FinalDestination != "" {
			fmt.Printf("  Move to:  %s\n", t.FinalDestination)
		}
		if t.ErrorMessage != "" {
			fmt.Printf("  Error:    %s\n", t.ErrorMessage)
		}
		fmt.Printf("  Created:  %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	}),
}

var downloadCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a transfer",
	Args:  cobra.ExactArgs(1),
	Run: run(func(cmd *cobra.Command, args []string) error {
		if err := apiCall(http.MethodPost, "/api/v1/downloads/"+url.PathEscape(args[0])+"/cancel", nil, nil); err != nil {
			return err
		}
		fmt.Println("Download cancelled successfully")
		return nil
	}),
}

var downloadCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Forget finished transfers",
	Run: run(func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Removed int `json:"removed"`
		}
		if err := apiCall(http.MethodPost, "/api/v1/downloads/cleanup", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Removed %d finished transfers\n", resp.Removed)
		return nil
	}),
}

var downloadWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live transfer progress",
	Run: run(func(cmd *cobra.Command, args []string) error {
		wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/api/v1/downloads/ws"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			return fmt.Errorf("failed to connect to progress stream: %w", err)
		}
		defer conn.Close()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		go func() {
			<-interrupt
			conn.Close()
		}()

		for {
			var msg struct {
				Type string               `json:"type"`
				Task *domain.DownloadTask `json:"task"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
					return fmt.Errorf("server dropped the stream: %w", err)
				}
				return nil
			}
			if msg.Task == nil {
				continue
			}
			t := msg.Task
			line := fmt.Sprintf("%s  %-30s %-11s %5.1f%%", t.TaskID, truncate(t.Title, 30), t.Status, t.Progress*100)
			if t.ErrorMessage != "" {
				line += "  " + t.ErrorMessage
			}
			fmt.Println(line)
		}
	}),
}

func init() {
	downloadListCmd.Flags().StringP("status", "s", "", "Filter by status (pending, downloading, completed, failed)")
	downloadCmd.AddCommand(downloadListCmd, downloadGetCmd, downloadCancelCmd, downloadCleanupCmd, downloadWatchCmd)
}
