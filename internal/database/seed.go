package database

import (
	"errors"
	"log/slog"

	"github.com/jimdaga/weather-tracker/internal/models"
	"gorm.io/gorm"
)

// DevCityName is the city created by SeedDevData
const DevCityName = "Springfield"

// SeedDevData registers a development city. Idempotent: an existing row is left untouched.
func SeedDevData(db *gorm.DB, logger *slog.Logger) error {
	var existing models.City
	err := db.Where("name = ?", DevCityName).First(&existing).Error
	if err == nil {
		logger.Debug("Seed data already exists, skipping", "city_id", existing.ID)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	city := models.City{Name: DevCityName}
	if err := db.Create(&city).Error; err != nil {
		return err
	}

	logger.Info("Seeded dev data", "city_id", city.ID, "city_name", city.Name)
	return nil
}
