package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kosarica/store-service/internal/format"
)

var formatKind string

// formatCmd represents the format command
var formatCmd = &cobra.Command{
	Use:   "format <value>...",
	Short: "Format values the way store listings display them",
	Long: `Format each value as a price, rating, distance or plain number. Values that
are empty or not numeric fall back to the display placeholder for the kind:
"0.00" for prices, "N/A" for ratings, an empty string for distances and 0 for
numbers.`,
	Example: `  storectl format --kind price 12.5 abc
  storectl format --kind rating 4.25 0
  storectl format --kind distance 1.234 -- -1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFormat,
}

func init() {
	rootCmd.AddCommand(formatCmd)

	formatCmd.Flags().StringVar(&formatKind, "kind", "price", "Value kind: price, rating, distance or number")
}

func runFormat(cmd *cobra.Command, args []string) error {
	return writeFormatted(cmd.OutOrStdout(), formatKind, args)
}

func writeFormatted(w io.Writer, kind string, values []string) error {
	var fn func(any) string
	switch strings.ToLower(kind) {
	case "price":
		fn = format.Price
	case "rating":
		fn = format.Rating
	case "distance":
		fn = format.Distance
	case "number":
		fn = func(v any) string {
			return strconv.FormatFloat(format.Number(v), 'f', -1, 64)
		}
	default:
		return fmt.Errorf("invalid kind: %s (use 'price', 'rating', 'distance' or 'number')", kind)
	}

	for _, v := range values {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", v, fn(v)); err != nil {
			return err
		}
	}
	return nil
}
