package cities

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/weather-tracker/internal/models"
)

// Service is the part of the City Store the HTTP handlers use
type Service interface {
	List(ctx context.Context) ([]models.City, error)
	Get(ctx context.Context, id uint) (models.City, error)
	Register(ctx context.Context, name, email string) (models.City, bool, error)
	Delete(ctx context.Context, id uint) error
}

// Trigger submits a one-off fetch job and returns its task id
type Trigger interface {
	EnqueueFetchCity(ctx context.Context, cityID uint) (string, error)
}

type registerRequest struct {
	Name  string `json:"name" form:"name"`
	Email string `json:"email" form:"email"`
}

// RegisterRoutes mounts the city endpoints on r
func RegisterRoutes(r gin.IRouter, svc Service, trigger Trigger, logger *slog.Logger) {
	r.POST("/cities", RegisterCityHandler(svc, logger))
	r.GET("/cities", ListCitiesHandler(svc, logger))
	r.GET("/cities/:id", GetCityHandler(svc, logger))
	r.POST("/cities/:id/remove", RemoveCityHandler(svc, logger))
	r.DELETE("/cities/:id", RemoveCityHandler(svc, logger))
	r.POST("/cities/:id/trigger", TriggerCityHandler(svc, trigger, logger))
}

// RegisterCityHandler creates a city, or returns the existing one with the
// same name after replacing its email when a new one is given
func RegisterCityHandler(svc Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'name' in payload"})
			return
		}

		city, created, err := svc.Register(c.Request.Context(), name, strings.TrimSpace(req.Email))
		if err != nil {
			logger.Error("Failed to register city", "city_name", name, "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register city"})
			return
		}

		if created {
			logger.Info("City registered", "city_id", city.ID, "city_name", city.Name)
			c.JSON(http.StatusCreated, gin.H{"status": "created", "city": city})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "exists", "city": city})
	}
}

// ListCitiesHandler returns every city with its last weather snapshot
func ListCitiesHandler(svc Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.List(c.Request.Context())
		if err != nil {
			logger.Error("Failed to list cities", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list cities"})
			return
		}
		if list == nil {
			list = []models.City{}
		}
		c.JSON(http.StatusOK, gin.H{"cities": list})
	}
}

// GetCityHandler returns one city
func GetCityHandler(svc Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		city, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			respondLookupError(c, logger, id, err)
			return
		}
		c.JSON(http.StatusOK, city)
	}
}

// RemoveCityHandler deletes a city
func RemoveCityHandler(svc Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		if err := svc.Delete(c.Request.Context(), id); err != nil {
			respondLookupError(c, logger, id, err)
			return
		}

		logger.Info("City removed", "city_id", id)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
	}
}

// TriggerCityHandler enqueues exactly one fetch job for an existing city
func TriggerCityHandler(svc Service, trigger Trigger, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		if _, err := svc.Get(c.Request.Context(), id); err != nil {
			respondLookupError(c, logger, id, err)
			return
		}

		taskID, err := trigger.EnqueueFetchCity(c.Request.Context(), id)
		if err != nil {
			logger.Error("Failed to enqueue city fetch", "city_id", id, "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue fetch"})
			return
		}

		logger.Info("City fetch triggered", "city_id", id, "task_id", taskID)
		c.JSON(http.StatusAccepted, gin.H{"status": "triggered", "task_id": taskID})
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid city id"})
		return 0, false
	}
	return uint(id), true
}

func respondLookupError(c *gin.Context, logger *slog.Logger, id uint, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "city not found"})
		return
	}
	logger.Error("City lookup failed", "city_id", id, "error", err.Error())
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
