// Package cities owns the City records: persistence and the HTTP surface for
// registering, listing, removing and refreshing them.
package cities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimdaga/weather-tracker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no city has the requested id
var ErrNotFound = errors.New("city not found")

// Snapshot is the weather observation persisted onto a city
type Snapshot struct {
	Temp        *float64
	Description string
	FetchedAt   time.Time
}

// Store is the GORM-backed City Store
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store on top of an open GORM handle
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get loads a city by id
func (s *Store) Get(ctx context.Context, id uint) (models.City, error) {
	var city models.City
	if err := s.db.WithContext(ctx).First(&city, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.City{}, ErrNotFound
		}
		return models.City{}, fmt.Errorf("failed to load city %d: %w", id, err)
	}
	return city, nil
}

// List returns every city ordered by name
func (s *Store) List(ctx context.Context) ([]models.City, error) {
	var list []models.City
	if err := s.db.WithContext(ctx).Order("name").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	return list, nil
}

// ListIDs returns the ids of every registered city
func (s *Store) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.City{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list city ids: %w", err)
	}
	return ids, nil
}

// Register gets or creates the city with the given name. When the city already
// exists only its email is changed, and only if a non-empty email is supplied.
// The boolean reports whether a new row was created.
func (s *Store) Register(ctx context.Context, name, email string) (models.City, bool, error) {
	if name == "" {
		return models.City{}, false, fmt.Errorf("city name is required")
	}

	var city models.City
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", name).First(&city).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			city = models.City{Name: name}
			if email != "" {
				city.Email = &email
			}
			// a concurrent registration of the same name wins the insert; read its row instead
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&city)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 1 {
				created = true
				return nil
			}
			city = models.City{}
			err = tx.Where("name = ?", name).First(&city).Error
		}
		if err != nil {
			return err
		}

		if email == "" {
			return nil
		}
		if err := tx.Model(&city).Update("email", email).Error; err != nil {
			return err
		}
		city.Email = &email
		return nil
	})
	if err != nil {
		return models.City{}, false, fmt.Errorf("failed to register city %q: %w", name, err)
	}

	return city, created, nil
}

// UpdateWeather writes temperature, description and fetch time in one UPDATE
// statement. Returns ErrNotFound when the city was deleted in the meantime.
func (s *Store) UpdateWeather(ctx context.Context, id uint, snap Snapshot) error {
	result := s.db.WithContext(ctx).
		Model(&models.City{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_temp":       snap.Temp,
			"last_desc":       snap.Description,
			"last_fetched_at": snap.FetchedAt,
			"updated_at":      snap.FetchedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update weather for city %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a city by id
func (s *Store) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.City{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete city %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
