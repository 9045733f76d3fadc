package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kosarica/store-service/internal/hours"
)

var (
	statusHours    string
	statusFile     string
	statusAt       string
	statusTimezone string
	statusOutput   string
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Resolve a store's opening status",
	Long: `Resolve whether a store is open at a given instant. Opening hours are given
either inline with --hours (a JSON weekday object, or free text with one
"<Weekday>: <start> – <end>" line per day) or from a YAML/JSON file with --file.`,
	Example: `  storectl status --hours '{"monday":"08:00-20:00"}' --at 2025-01-06T10:00:00+01:00
  storectl status --hours $'Monday: 8:00 AM – 9:00 PM\nTuesday: Closed'
  storectl status --file ./testdata/hours.yaml --timezone Europe/Zagreb --output json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusHours, "hours", "", "Opening hours as a JSON object or free text")
	statusCmd.Flags().StringVar(&statusFile, "file", "", "YAML or JSON file holding the opening hours")
	statusCmd.Flags().StringVar(&statusAt, "at", "", "RFC 3339 instant (defaults to now)")
	statusCmd.Flags().StringVar(&statusTimezone, "timezone", "", "IANA time zone (default from config)")
	statusCmd.Flags().StringVar(&statusOutput, "output", "text", "Output format: text or json")
	statusCmd.MarkFlagsMutuallyExclusive("hours", "file")
}

func runStatus(cmd *cobra.Command, args []string) error {
	var (
		schedule hours.Schedule
		err      error
	)
	switch {
	case statusFile != "":
		content, readErr := os.ReadFile(statusFile)
		if readErr != nil {
			return fmt.Errorf("failed to read hours file: %w", readErr)
		}
		schedule, err = parseHoursDocument(content)
	default:
		schedule, err = parseHoursFlag(statusHours)
	}
	if err != nil {
		return err
	}

	loc, err := hoursLocation(statusTimezone)
	if err != nil {
		return err
	}
	at, err := resolveAt(statusAt, loc)
	if err != nil {
		return err
	}

	return writeStatus(cmd.OutOrStdout(), hours.Resolve(schedule, at), statusOutput)
}

// parseHoursFlag treats a value starting with '{' or '"' as JSON and
// anything else as a free-text schedule.
func parseHoursFlag(raw string) (hours.Schedule, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, `"`) || trimmed == "null" {
		return hours.Parse([]byte(trimmed))
	}
	return hours.FromValue(raw)
}

// parseHoursDocument decodes a YAML (or JSON) document holding either a
// weekday mapping or a multi-line string.
func parseHoursDocument(content []byte) (hours.Schedule, error) {
	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse hours file: %w", err)
	}
	return hours.FromValue(doc)
}

func writeStatus(w io.Writer, status hours.Status, output string) error {
	switch strings.ToLower(output) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	case "text":
		_, err := fmt.Fprintf(w, "%s (%s): %s\n", status.State, status.Color, status.Message)
		if err == nil && status.TodayHours != "" {
			_, err = fmt.Fprintf(w, "Today: %s\n", status.TodayHours)
		}
		return err
	default:
		return fmt.Errorf("invalid output format: %s (use 'text' or 'json')", output)
	}
}
