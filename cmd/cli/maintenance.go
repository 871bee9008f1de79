package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/pkg/logger"
)

var validationCmd = &cobra.Command{
	Use:   "validation",
	Short: "Inspect and tune local file validation",
}

var validationStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show validation statistics",
	Run: run(func(cmd *cobra.Command, args []string) error {
		var stats domain.ValidationStats
		if err := apiCall(http.MethodGet, "/api/v1/validation/stats", nil, &stats); err != nil {
			return err
		}
		printValidationStats(stats)
		return nil
	}),
}

var validationClearCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop every cached validation result",
	Run: run(func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Cleared int `json:"cleared"`
		}
		if err := apiCall(http.MethodPost, "/api/v1/validation/cache/clear", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Cleared %d cache entries\n", resp.Cleared)
		return nil
	}),
}

var validationCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Drop expired validation results",
	Run: run(func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Removed int `json:"removed"`
		}
		if err := apiCall(http.MethodPost, "/api/v1/validation/cache/cleanup", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Removed %d expired entries\n", resp.Removed)
		return nil
	}),
}

var validationResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero the validation counters",
	Run: run(func(cmd *cobra.Command, args []string) error {
		if err := apiCall(http.MethodPost, "/api/v1/validation/stats/reset", nil, nil); err != nil {
			return err
		}
		fmt.Println("Validation statistics reset")
		return nil
	}),
}

var validationSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change cache TTL or worker count",
	Run: run(func(cmd *cobra.Command, args []string) error {
		payload := map[string]int{}
		if cmd.Flags().Changed("ttl") {
			ttl, _ := cmd.Flags().GetInt("ttl")
			payload["cache_ttl_seconds"] = ttl
		}
		if cmd.Flags().Changed("workers") {
			workers, _ := cmd.Flags().GetInt("workers")
			payload["max_workers"] = workers
		}
		if len(payload) == 0 {
			return fmt.Errorf("nothing to change, use --ttl or --workers")
		}

		var stats domain.ValidationStats
		if err := apiCall(http.MethodPut, "/api/v1/validation/settings", payload, &stats); err != nil {
			return err
		}
		printValidationStats(stats)
		return nil
	}),
}

func printValidationStats(s domain.ValidationStats) {
	fmt.Println("Validation Statistics:")
	fmt.Printf("  Validations:  %d\n", s.TotalValidations)
	fmt.Printf("  Cache hits:   %d (%.1f%%)\n", s.CacheHits, s.CacheHitRate*100)
	fmt.Printf("  Cache misses: %d\n", s.CacheMisses)
	fmt.Printf("  Validated:    %d\n", s.FilesValidated)
	fmt.Printf("  Missing:      %d\n", s.FilesMissing)
	fmt.Printf("  Cache size:   %d (TTL %s)\n", s.CacheSize, s.CacheTTL)
	fmt.Printf("  Workers:      %d\n", s.MaxWorkers)
	fmt.Printf("  Last batch:   %d items in %s\n", s.LastBatchSize, s.LastBatchDuration)
}

var logsCmd = &cobra.Command{
	Use:   "logs [category|categories]",
	Short: "View event logs (download, catalog, error)",
	Args:  cobra.ExactArgs(1),
	Run: run(func(cmd *cobra.Command, args []string) error {
		if args[0] == "categories" {
			for _, c := range logger.Categories {
				fmt.Println(c)
			}
			return nil
		}
		category := logger.LogCategory(args[0])
		if !logger.ValidCategory(category) {
			return fmt.Errorf("unknown category %q", args[0])
		}
		date, _ := cmd.Flags().GetString("date")
		limit, _ := cmd.Flags().GetInt("limit")
		search, _ := cmd.Flags().GetString("search")

		path := "/api/v1/logs/" + string(category)
		q := url.Values{}
		if search != "" {
			path += "/search"
			q.Set("q", search)
		}
		if date != "" {
			q.Set("date", date)
		}
		q.Set("limit", strconv.Itoa(limit))
		path += "?" + q.Encode()

		var resp struct {
			Entries []logger.LogEntry `json:"entries"`
		}
		if err := apiCall(http.MethodGet, path, nil, &resp); err != nil {
			return err
		}
		for _, e := range resp.Entries {
			fmt.Printf("%s %-5s %s", e.Timestamp, e.Level, e.Message)
			for k, v := range e.Fields {
				fmt.Printf(" %s=%v", k, v)
			}
			fmt.Println()
		}
		return nil
	}),
}

func init() {
	validationSetCmd.Flags().Int("ttl", 300, "Cache TTL in seconds")
	validationSetCmd.Flags().Int("workers", 10, "Maximum concurrent file checks")
	validationCmd.AddCommand(validationStatsCmd, validationClearCmd, validationCleanupCmd, validationResetCmd, validationSetCmd)

	logsCmd.Flags().StringP("date", "d", "", "Date (YYYY-MM-DD), today when empty")
	logsCmd.Flags().IntP("limit", "n", 100, "Maximum entries")
	logsCmd.Flags().StringP("search", "q", "", "Only entries containing this text")
}
