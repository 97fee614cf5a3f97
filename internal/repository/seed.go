package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/spf13/viper"
)

type concertSeed struct {
	ID           string             `mapstructure:"id"`
	Title        string             `mapstructure:"title"`
	Dates        []string           `mapstructure:"dates"`
	Prices       map[string]float64 `mapstructure:"prices"`
	PerformerIDs []string           `mapstructure:"performer_ids"`
}

type catalogSeed struct {
	Concerts []concertSeed `mapstructure:"concerts"`
}

// LoadConcertSeed reads concerts from a YAML or JSON file. Dates are RFC 3339.
func LoadConcertSeed(path string) ([]*domain.Concert, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog seed %s: %w", path, err)
	}

	var seed catalogSeed
	if err := v.Unmarshal(&seed); err != nil {
		return nil, fmt.Errorf("failed to decode catalog seed: %w", err)
	}

	concerts := make([]*domain.Concert, 0, len(seed.Concerts))
	for i, s := range seed.Concerts {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog seed: concert %d has no id", i)
		}

		c := &domain.Concert{
			ID:           s.ID,
			Title:        s.Title,
			Prices:       make(map[domain.PriceBand]float64, len(s.Prices)),
			PerformerIDs: s.PerformerIDs,
		}
		for _, raw := range s.Dates {
			d, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("catalog seed: concert %s: invalid date %q: %w", s.ID, raw, err)
			}
			c.Dates = append(c.Dates, d.UTC())
		}
		for rawBand, price := range s.Prices {
			band, err := domain.ParsePriceBand(rawBand)
			if err != nil {
				return nil, fmt.Errorf("catalog seed: concert %s: %w", s.ID, err)
			}
			c.Prices[band] = price
		}
		concerts = append(concerts, c)
	}

	return concerts, nil
}

// SeedConcerts saves every concert into repo
func SeedConcerts(ctx context.Context, repo ConcertRepository, concerts []*domain.Concert) error {
	for _, c := range concerts {
		if err := repo.Save(ctx, c); err != nil {
			return fmt.Errorf("failed to seed concert %s: %w", c.ID, err)
		}
	}
	return nil
}
