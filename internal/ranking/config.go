package ranking

// DefaultPriceToleranceCents is the price gap, in minor currency units, at or
// below which two prices count as equal and distance decides.
const DefaultPriceToleranceCents int64 = 10

// Config holds the ranking settings.
type Config struct {
	PriceToleranceCents int64   `mapstructure:"price_tolerance_cents"`
	MaxRadiusKm         float64 `mapstructure:"max_radius_km"`
}

// Defaults returns the default ranking configuration.
func Defaults() Config {
	return Config{
		PriceToleranceCents: DefaultPriceToleranceCents,
		MaxRadiusKm:         50,
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c Config) Validate() error {
	if c.PriceToleranceCents < 0 {
		return ErrInvalidConfig{Field: "price_tolerance_cents", Reason: "must be non-negative"}
	}
	if c.MaxRadiusKm <= 0 {
		return ErrInvalidConfig{Field: "max_radius_km", Reason: "must be positive"}
	}
	return nil
}

// ErrInvalidConfig is returned when the configuration is invalid.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return e.Field + ": " + e.Reason
}
