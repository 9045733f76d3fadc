package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kosarica/store-service/internal/database"
	"github.com/kosarica/store-service/internal/stores"
)

var (
	importFixturePath string
	importProductID   string
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a fixture into the store tables",
	Long: `Upsert the fixture's stores, link the carried stores to the product and
record one price report per priced store. The product ID comes from --product
or the fixture's productId.`,
	Example: `  storectl import --fixture ./testdata/milk.yaml
  storectl import --fixture ./testdata/milk.json --product milk-1l`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importFixturePath, "fixture", "", "Fixture file (required)")
	importCmd.Flags().StringVar(&importProductID, "product", "", "Product ID (overrides the fixture's productId)")
	importCmd.MarkFlagRequired("fixture")
}

// storeWriter is the write side of the store repository
type storeWriter interface {
	UpsertStore(ctx context.Context, s stores.Store) error
	MarkCarried(ctx context.Context, productID string, storeIDs ...string) error
	RecordPrice(ctx context.Context, p database.PriceReport) error
}

type importSummary struct {
	Stores  int
	Carried int
	Prices  int
}

func runImport(cmd *cobra.Command, args []string) error {
	defer database.Close()

	f, err := loadFixture(importFixturePath)
	if err != nil {
		return err
	}
	if importProductID != "" {
		f.ProductID = importProductID
	}

	summary, err := importFixture(cmd.Context(), database.NewStoreRepository(database.Pool()), f, time.Now())
	if err != nil {
		return err
	}

	logger.Info().
		Str("product", f.ProductID).
		Int("stores", summary.Stores).
		Int("carried", summary.Carried).
		Int("prices", summary.Prices).
		Msg("Fixture imported")
	return nil
}

// importFixture writes f through w. Prices are recorded in store ID order,
// all stamped with reportedAt.
func importFixture(ctx context.Context, w storeWriter, f *fixture, reportedAt time.Time) (importSummary, error) {
	var summary importSummary

	if (len(f.Carried) > 0 || len(f.Prices) > 0) && f.ProductID == "" {
		return summary, fmt.Errorf("a product ID is required to import prices or carried stores")
	}

	for _, s := range f.Stores {
		if err := w.UpsertStore(ctx, s); err != nil {
			return summary, err
		}
		summary.Stores++
	}

	if len(f.Carried) > 0 {
		if err := w.MarkCarried(ctx, f.ProductID, f.Carried...); err != nil {
			return summary, err
		}
		summary.Carried = len(f.Carried)
	}

	storeIDs := make([]string, 0, len(f.Prices))
	for id := range f.Prices {
		storeIDs = append(storeIDs, id)
	}
	sort.Strings(storeIDs)

	for _, id := range storeIDs {
		if err := w.RecordPrice(ctx, database.PriceReport{
			StoreID:    id,
			ProductID:  f.ProductID,
			PriceCents: f.Prices[id],
			ReportedAt: reportedAt,
		}); err != nil {
			return summary, err
		}
		summary.Prices++
	}

	return summary, nil
}
