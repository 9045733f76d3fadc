package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/kosarica/store-service/internal/format"
	"github.com/kosarica/store-service/internal/hours"
	"github.com/kosarica/store-service/internal/ranking"
	"github.com/kosarica/store-service/internal/stores"
)

var (
	rankFixture   string
	rankLat       float64
	rankLng       float64
	rankTolerance int64
	rankAt        string
	rankTimezone  string
	rankOutput    string
	rankOut       string
)

// rankSheet is the worksheet name used for xlsx exports
const rankSheet = "Stores"

var rankHeaders = []string{"Rank", "Store ID", "Name", "City", "Price", "Distance (km)", "Rating", "Status"}

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank the stores in a fixture file",
	Long: `Rank the stores listed in a YAML or JSON fixture by lowest known price and
distance from the shopper. A store is ranked when it is listed under "carried"
or has an entry under "prices". Each row also shows the store's opening status.`,
	Example: `  storectl rank --fixture ./testdata/milk.yaml
  storectl rank --fixture ./testdata/milk.yaml --lat 45.815 --lng 15.982
  storectl rank --fixture ./testdata/milk.json --output xlsx --out milk.xlsx`,
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringVar(&rankFixture, "fixture", "", "Fixture file with stores, prices and carried store IDs (required)")
	rankCmd.Flags().Float64Var(&rankLat, "lat", 0, "Shopper latitude (overrides the fixture's userLocation)")
	rankCmd.Flags().Float64Var(&rankLng, "lng", 0, "Shopper longitude (overrides the fixture's userLocation)")
	rankCmd.Flags().Int64Var(&rankTolerance, "tolerance", -1, "Price tolerance in minor units (default from config)")
	rankCmd.Flags().StringVar(&rankAt, "at", "", "RFC 3339 instant to resolve opening hours at (defaults to now)")
	rankCmd.Flags().StringVar(&rankTimezone, "timezone", "", "IANA time zone for opening hours (default from config)")
	rankCmd.Flags().StringVar(&rankOutput, "output", "table", "Output format: table, json or xlsx")
	rankCmd.Flags().StringVar(&rankOut, "out", "", "Output file (required for xlsx, stdout otherwise)")
	rankCmd.MarkFlagRequired("fixture")
}

// rankRow is one ranked store as printed or exported
type rankRow struct {
	Rank     int    `json:"rank"`
	StoreID  string `json:"storeId"`
	Name     string `json:"name"`
	City     string `json:"city,omitempty"`
	Price    string `json:"price,omitempty"`
	Distance string `json:"distance,omitempty"`
	Rating   string `json:"rating"`
	Status   string `json:"status"`
}

func (r rankRow) cells() []interface{} {
	return []interface{}{r.Rank, r.StoreID, r.Name, r.City, r.Price, r.Distance, r.Rating, r.Status}
}

func runRank(cmd *cobra.Command, args []string) error {
	f, err := loadFixture(rankFixture)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
		if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
			return fmt.Errorf("--lat and --lng must be given together")
		}
		loc := stores.Location{Latitude: rankLat, Longitude: rankLng}
		if err := loc.Validate(); err != nil {
			return err
		}
		f.UserLocation = &loc
	}

	rankCfg := ranking.Defaults()
	if cfg != nil {
		rankCfg = cfg.Ranking
	}
	if rankTolerance >= 0 {
		rankCfg.PriceToleranceCents = rankTolerance
	}

	loc, err := hoursLocation(rankTimezone)
	if err != nil {
		return err
	}
	at, err := resolveAt(rankAt, loc)
	if err != nil {
		return err
	}

	ranked := ranking.NewRanker(rankCfg).Rank(f.query())
	rows := buildRankRows(ranked, at)
	logger.Info().
		Int("stores", len(f.Stores)).
		Int("ranked", len(rows)).
		Int64("tolerance_cents", rankCfg.PriceToleranceCents).
		Msg("Ranked stores")

	switch strings.ToLower(rankOutput) {
	case "xlsx":
		if rankOut == "" {
			return fmt.Errorf("--out is required for xlsx output")
		}
		out, err := os.Create(rankOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", rankOut, err)
		}
		defer out.Close()
		if err := writeRankXLSX(out, rows); err != nil {
			return err
		}
		logger.Info().Str("file", rankOut).Msg("Wrote spreadsheet")
		return nil
	case "json", "table":
		w := cmd.OutOrStdout()
		if rankOut != "" {
			out, err := os.Create(rankOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", rankOut, err)
			}
			defer out.Close()
			w = out
		}
		if strings.EqualFold(rankOutput, "json") {
			return writeRankJSON(w, rows)
		}
		return writeRankTable(w, rows)
	default:
		return fmt.Errorf("invalid output format: %s (use 'table', 'json' or 'xlsx')", rankOutput)
	}
}

func buildRankRows(ranked []ranking.RankableStore, at time.Time) []rankRow {
	rows := make([]rankRow, 0, len(ranked))
	for i, rs := range ranked {
		row := rankRow{
			Rank:     i + 1,
			StoreID:  rs.ID,
			Name:     rs.Name,
			City:     rs.City,
			Distance: format.Distance(rs.DistanceKm),
			Rating:   format.Rating(rs.Rating),
			Status:   hours.Resolve(rs.OpeningHours.Schedule, at).Message,
		}
		if rs.HasPrice {
			row.Price = format.PriceCents(*rs.LowestKnownPrice)
		}
		rows = append(rows, row)
	}
	return rows
}

func writeRankTable(w io.Writer, rows []rankRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No stores carry this product")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rankHeaders, "\t"))
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Rank, r.StoreID, r.Name, dash(r.City), dash(r.Price), dash(r.Distance), r.Rating, r.Status)
	}
	return tw.Flush()
}

func writeRankJSON(w io.Writer, rows []rankRow) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}

func writeRankXLSX(w io.Writer, rows []rankRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rankSheet); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}

	header := make([]interface{}, len(rankHeaders))
	for i, h := range rankHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(rankSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(rankHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(rankSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := r.cells()
		if err := f.SetSheetRow(rankSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(rankSheet, "B", "C", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(rankSheet, "H", "H", 28); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
