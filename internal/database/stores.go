package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"golang.org/x/sync/errgroup"

	"github.com/kosarica/store-service/internal/hours"
	"github.com/kosarica/store-service/internal/ranking"
	"github.com/kosarica/store-service/internal/stores"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// boundPadding widens the prefilter box so that points at exactly the
// radius survive; orb measures with a slightly larger Earth radius.
const boundPadding = 1.01

const storeColumns = `
	s.id, s.name, COALESCE(s.brand, ''), COALESCE(s.category, ''),
	COALESCE(s.address, ''), COALESCE(s.city, ''), COALESCE(s.postal_code, ''),
	s.latitude, s.longitude, s.phone, s.rating, s.opening_hours`

// StoreRepository reads and writes stores, carry links and price reports.
type StoreRepository struct {
	db DB
}

// NewStoreRepository creates a repository on db.
func NewStoreRepository(db DB) *StoreRepository {
	return &StoreRepository{db: db}
}

// GetStore loads one store by ID.
func (r *StoreRepository) GetStore(ctx context.Context, id string) (*stores.Store, error) {
	row := r.db.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores s WHERE s.id = $1`, id)
	s, err := scanStore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store %s: %w", id, err)
	}
	return &s, nil
}

// ListStores returns all stores matching filter, ordered by ID.
func (r *StoreRepository) ListStores(ctx context.Context, filter StoreFilter) ([]stores.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores s`
	var args []any
	if filter.active() {
		where, boxArgs := boundClause(filter, 1)
		query += ` WHERE ` + where
		args = append(args, boxArgs...)
	}
	query += ` ORDER BY s.id`

	return r.queryStores(ctx, filter, query, args...)
}

// ListProductStores returns the stores matching filter that carry productID
// or have a price reported for it.
func (r *StoreRepository) ListProductStores(ctx context.Context, productID string, filter StoreFilter) ([]stores.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores s
		WHERE (EXISTS (SELECT 1 FROM store_products sp WHERE sp.store_id = s.id AND sp.product_id = $1)
			OR EXISTS (SELECT 1 FROM store_prices p WHERE p.store_id = s.id AND p.product_id = $1))`
	args := []any{productID}
	if filter.active() {
		where, boxArgs := boundClause(filter, 2)
		query += ` AND ` + where
		args = append(args, boxArgs...)
	}
	query += ` ORDER BY s.id`

	return r.queryStores(ctx, filter, query, args...)
}

// CarriedStoreIDs returns the IDs of stores linked to productID.
func (r *StoreRepository) CarriedStoreIDs(ctx context.Context, productID string) (ranking.StoreSet, error) {
	rows, err := r.db.Query(ctx, `SELECT store_id FROM store_products WHERE product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query carried stores: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan carried stores: %w", err)
	}
	return ranking.NewStoreSet(ids...), nil
}

// LowestPrices returns the lowest reported price of productID per store.
func (r *StoreRepository) LowestPrices(ctx context.Context, productID string) (ranking.PriceIndex, error) {
	rows, err := r.db.Query(ctx, `
		SELECT store_id, MIN(price_cents)
		FROM store_prices
		WHERE product_id = $1
		GROUP BY store_id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lowest prices: %w", err)
	}
	defer rows.Close()

	prices := make(ranking.PriceIndex)
	for rows.Next() {
		var storeID string
		var cents int64
		if err := rows.Scan(&storeID, &cents); err != nil {
			return nil, fmt.Errorf("failed to scan lowest price: %w", err)
		}
		prices[storeID] = cents
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lowest prices: %w", err)
	}
	return prices, nil
}

// LoadProductStores runs the store, carry and price lookups for productID
// concurrently.
func (r *StoreRepository) LoadProductStores(ctx context.Context, productID string, filter StoreFilter) (*ProductStores, error) {
	var result ProductStores
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, err := r.ListProductStores(gctx, productID, filter)
		result.Stores = list
		return err
	})
	g.Go(func() error {
		carried, err := r.CarriedStoreIDs(gctx, productID)
		result.Carried = carried
		return err
	})
	g.Go(func() error {
		prices, err := r.LowestPrices(gctx, productID)
		result.Prices = prices
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpsertStore inserts s or replaces the stored row with the same ID.
func (r *StoreRepository) UpsertStore(ctx context.Context, s stores.Store) error {
	var lat, lng *float64
	if s.Location != nil {
		lat, lng = &s.Location.Latitude, &s.Location.Longitude
	}

	var openingHours []byte
	if !s.OpeningHours.IsZero() {
		raw, err := json.Marshal(s.OpeningHours)
		if err != nil {
			return fmt.Errorf("failed to encode opening hours for %s: %w", s.ID, err)
		}
		openingHours = raw
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO stores (
			id, name, brand, category, address, city, postal_code,
			latitude, longitude, phone, rating, opening_hours
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
			$8, $9, $10, $11, $12
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			postal_code = EXCLUDED.postal_code,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			phone = EXCLUDED.phone,
			rating = EXCLUDED.rating,
			opening_hours = EXCLUDED.opening_hours,
			updated_at = NOW()
	`, s.ID, s.Name, s.Brand, s.Category, s.Address, s.City, s.PostalCode,
		lat, lng, s.Phone, s.Rating, openingHours)
	if err != nil {
		return fmt.Errorf("failed to upsert store %s: %w", s.ID, err)
	}
	return nil
}

// MarkCarried links stores to productID. Existing links are kept.
func (r *StoreRepository) MarkCarried(ctx context.Context, productID string, storeIDs ...string) error {
	for _, id := range storeIDs {
		_, err := r.db.Exec(ctx, `
			INSERT INTO store_products (store_id, product_id)
			VALUES ($1, $2)
			ON CONFLICT (store_id, product_id) DO NOTHING
		`, id, productID)
		if err != nil {
			return fmt.Errorf("failed to mark %s as carrying %s: %w", id, productID, err)
		}
	}
	return nil
}

// RecordPrice stores a price report. A zero ReportedAt means now.
func (r *StoreRepository) RecordPrice(ctx context.Context, p PriceReport) error {
	reportedAt := p.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = time.Now()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO store_prices (store_id, product_id, price_cents, reported_at)
		VALUES ($1, $2, $3, $4)
	`, p.StoreID, p.ProductID, p.PriceCents, reportedAt)
	if err != nil {
		return fmt.Errorf("failed to record price for %s at %s: %w", p.ProductID, p.StoreID, err)
	}
	return nil
}

func (r *StoreRepository) queryStores(ctx context.Context, filter StoreFilter, query string, args ...any) ([]stores.Store, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stores: %w", err)
	}
	defer rows.Close()

	result := []stores.Store{}
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		if !filter.Matches(s.Location) {
			continue
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stores: %w", err)
	}
	return result, nil
}

func scanStore(row pgx.Row) (stores.Store, error) {
	var s stores.Store
	var lat, lng *float64
	var openingHours []byte

	err := row.Scan(
		&s.ID, &s.Name, &s.Brand, &s.Category,
		&s.Address, &s.City, &s.PostalCode,
		&lat, &lng, &s.Phone, &s.Rating, &openingHours,
	)
	if err != nil {
		return s, err
	}

	if lat != nil && lng != nil {
		s.Location = &stores.Location{Latitude: *lat, Longitude: *lng}
	}
	// Malformed hours degrade to "not provided" rather than hiding the store.
	if schedule, err := hours.Parse(openingHours); err == nil {
		s.OpeningHours = hours.OpeningHours{Schedule: schedule}
	}
	return s, nil
}

// boundClause returns a latitude/longitude box predicate around the filter
// center, numbering its placeholders from first. Rows without coordinates
// pass. A box crossing the antimeridian is split into its two longitude
// ranges.
func boundClause(filter StoreFilter, first int) (string, []any) {
	center := orb.Point{filter.Center.Longitude, filter.Center.Latitude}
	bound := geo.NewBoundAroundPoint(center, filter.RadiusKm*1000*boundPadding)

	minLng, maxLng := bound.Min.Lon(), bound.Max.Lon()
	lngOp := "AND"
	if maxLng-minLng < 360 {
		minLng, maxLng = math.Remainder(minLng, 360), math.Remainder(maxLng, 360)
		if minLng > maxLng {
			lngOp = "OR"
		}
	} else {
		minLng, maxLng = -180, 180
	}

	where := fmt.Sprintf(
		"(s.latitude IS NULL OR s.longitude IS NULL OR "+
			"(s.latitude BETWEEN $%d AND $%d AND (s.longitude >= $%d %s s.longitude <= $%d)))",
		first, first+1, first+2, lngOp, first+3,
	)
	return where, []any{bound.Min.Lat(), bound.Max.Lat(), minLng, maxLng}
}
