package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourusername/mediahub-go/internal/domain"
)

type itemList struct {
	Total int                   `json:"total"`
	Count int                   `json:"count"`
	Items []*domain.CatalogItem `json:"items"`
}

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Browse the unified catalog",
}

var mediaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog items",
	Run: run(func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		kind, _ := cmd.Flags().GetString("type")
		availability, _ := cmd.Flags().GetString("availability")
		force, _ := cmd.Flags().GetBool("force")
		limit, _ := cmd.Flags().GetInt("limit")

		path := "/api/v1/media"
		switch source {
		case "", "unified":
		case "local", "remote":
			path += "/" + source
		default:
			return fmt.Errorf("unknown source %q (unified, local, remote)", source)
		}

		q := url.Values{}
		if kind != "" {
			q.Set("media_type", kind)
		}
		if availability != "" {
			q.Set("availability", availability)
		}
		if force {
			q.Set("force", "true")
		}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var list itemList
		if err := apiCall(http.MethodGet, path, nil, &list); err != nil {
			return err
		}
		printItems(list.Items)
		fmt.Printf("\n%d of %d items\n", list.Count, list.Total)
		return nil
	}),
}

var mediaSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Fuzzy search catalog titles",
	Args:  cobra.ExactArgs(1),
	Run: run(func(cmd *cobra.Command, args []string) error {
		var list itemList
		if err := apiCall(http.MethodGet, "/api/v1/media/search?q="+url.QueryEscape(args[0]), nil, &list); err != nil {
			return err
		}
		printItems(list.Items)
		return nil
	}),
}

var mediaGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show catalog item details",
	Args:  cobra.ExactArgs(1),
	Run: run(func(cmd *cobra.Command, args []string) error {
		var item domain.CatalogItem
		if err := apiCall(http.MethodGet, "/api/v1/media/"+url.PathEscape(args[0]), nil, &item); err != nil {
			return err
		}
		fmt.Printf("Media Details:\n")
		fmt.Printf("  ID:           %s\n", item.ID)
		fmt.Printf("  Title:        %s\n", item.Title)
		fmt.Printf("  Type:         %s\n", item.Kind)
		fmt.Printf("  Availability: %s\n", item.Availability)
		if item.Year > 0 {
			fmt.Printf("  Year:         %d\n", item.Year)
		}
		if item.DurationSeconds > 0 {
			fmt.Printf("  Duration:     %dm\n", item.DurationSeconds/60)
		}
		if item.LocalPath != "" {
			fmt.Printf("  File:         %s\n", item.LocalPath)
		}
		if item.RemoteID != "" {
			fmt.Printf("  Jellyfin ID:  %s\n", item.RemoteID)
		}
		return nil
	}),
}

var mediaDownloadCmd = &cobra.Command{
	Use:   "download [id]",
	Short: "Download a remote item",
	Args:  cobra.ExactArgs(1),
	Run: run(func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		dest, _ := cmd.Flags().GetString("dest")

		payload := map[string]string{}
		if dir != "" {
			payload["download_dir"] = dir
		}
		if dest != "" {
			payload["final_destination"] = dest
		}

		var task domain.DownloadTask
		if err := apiCall(http.MethodPost, "/api/v1/media/"+url.PathEscape(args[0])+"/download", payload, &task); err != nil {
			return err
		}
		fmt.Printf("Download started!\n")
		fmt.Printf("Task:   %s\n", task.TaskID)
		fmt.Printf("File:   %s\n", task.FilePath)
		fmt.Printf("Status: %s\n", task.Status)
		return nil
	}),
}

var mediaCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare local and remote libraries",
	Run: run(func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := "/api/v1/media/compare"
		if force {
			path += "?force=true"
		}
		var cmp domain.LibraryComparison
		if err := apiCall(http.MethodGet, path, nil, &cmp); err != nil {
			return err
		}
		fmt.Println("Library Comparison:")
		fmt.Printf("  Local only:  %d\n", cmp.Summary.LocalOnlyCount)
		fmt.Printf("  Remote only: %d\n", cmp.Summary.RemoteOnlyCount)
		fmt.Printf("  Both:        %d\n", cmp.Summary.BothCount)
		fmt.Printf("  Unique:      %d\n", cmp.Summary.TotalUnique)
		return nil
	}),
}

var mediaSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rescan local directories and refresh the remote catalog",
	Run: run(func(cmd *cobra.Command, args []string) error {
		lazy, _ := cmd.Flags().GetBool("request")
		if lazy {
			if err := apiCall(http.MethodPost, "/api/v1/media/sync/request", nil, nil); err != nil {
				return err
			}
			fmt.Println("Remote refresh scheduled for the next catalog read")
			return nil
		}

		var result domain.SyncResult
		if err := apiCall(http.MethodPost, "/api/v1/media/sync", nil, &result); err != nil {
			return err
		}
		fmt.Printf("Synchronized in %.1fs: %d local files scanned, %d unified items\n",
			result.DurationSeconds, result.LocalScanned, result.UnifiedCount)
		return nil
	}),
}

var showsCmd = &cobra.Command{
	Use:   "shows [query]",
	Short: "List TV shows grouped by season",
	Args:  cobra.MaximumNArgs(1),
	Run: run(func(cmd *cobra.Command, args []string) error {
		path := "/api/v1/media/shows"
		if len(args) == 1 {
			path += "?q=" + url.QueryEscape(args[0])
		}
		var resp struct {
			Shows []*domain.Show `json:"shows"`
		}
		if err := apiCall(http.MethodGet, path, nil, &resp); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TITLE\tYEAR\tSEASONS\tEPISODES")
		for _, s := range resp.Shows {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", truncate(s.Title, 40), yearString(s.Year), len(s.Seasons), len(s.Episodes()))
		}
		return w.Flush()
	}),
}

func printItems(items []*domain.CatalogItem) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tYEAR\tTYPE\tAVAILABILITY")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncate(it.ID, 24),
			truncate(it.Title, 40),
			yearString(it.Year),
			it.Kind,
			it.Availability)
	}
	w.Flush()
}

func yearString(year int) string {
	if year == 0 {
		return "-"
	}
	return strconv.Itoa(year)
}

func init() {
	mediaListCmd.Flags().StringP("source", "s", "unified", "Catalog source (unified, local, remote)")
	mediaListCmd.Flags().StringP("type", "t", "", "Filter by media type (movie, show, episode)")
	mediaListCmd.Flags().StringP("availability", "a", "", "Filter by availability (local_only, remote_only, both)")
	mediaListCmd.Flags().BoolP("force", "f", false, "Bypass cached lists")
	mediaListCmd.Flags().IntP("limit", "n", 0, "Maximum items to print")
	mediaDownloadCmd.Flags().StringP("dir", "d", "", "Download directory (server default when empty)")
	mediaDownloadCmd.Flags().String("dest", "", "Move the file here after completion")
	mediaCompareCmd.Flags().BoolP("force", "f", false, "Bypass cached lists")
	mediaSyncCmd.Flags().Bool("request", false, "Only schedule a remote refresh for the next read")

	mediaCmd.AddCommand(mediaListCmd, mediaSearchCmd, mediaGetCmd, mediaDownloadCmd, mediaCompareCmd, mediaSyncCmd)
}
