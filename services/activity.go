package services

import (
	"errors"
	"log"
	"time"

	"mitche-engagement-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ActivityService manages the admin-configured ritual activities.
type ActivityService struct {
	DB *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{DB: db}
}

// DeactivateExpired flips off activities whose end time has passed.
// Called by the scheduler every minute.
func (s *ActivityService) DeactivateExpired() {
	now := time.Now().UTC()
	result := s.DB.Model(&models.Activity{}).
		Where("active = ? AND ends_at IS NOT NULL AND ends_at <= ?", true, now).
		Update("active", false)
	if result.Error != nil {
		log.Printf("[Scheduler] Activity deactivation failed: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("✅ Deactivated %d expired activity(ies)", result.RowsAffected)
	}
}

// --- Admin Handlers ---

// ListActivities returns all activities, newest first (Admin only).
func (s *ActivityService) ListActivities(c *fiber.Ctx) error {
	var activities []models.Activity
	if err := s.DB.Order("created_at DESC").Find(&activities).Error; err != nil {
		log.Printf("DB Error fetching activities: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch activities"})
	}
	return c.JSON(activities)
}

// CreateActivity adds a ritual activity (Admin only). Creating a new
// active ritual supersedes older ones: award resolution picks the newest.
func (s *ActivityService) CreateActivity(c *fiber.Ctx) error {
	var req struct {
		Title              string            `json:"title"`
		Type               string            `json:"type"`
		LimitPerUserPerDay int               `json:"limit_per_user_per_day"`
		Prompts            map[string]string `json:"prompts"`
		EndsAt             *time.Time        `json:"ends_at"`
		Active             *bool             `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	a := models.Activity{
		ID:                 uuid.NewString(),
		Slug:               slug.Make(req.Title),
		Title:              req.Title,
		Type:               models.ActivityTypeRitual,
		Active:             true,
		LimitPerUserPerDay: 1,
		Prompts:            req.Prompts,
		EndsAt:             req.EndsAt,
	}
	if req.Type != "" {
		a.Type = req.Type
	}
	if req.LimitPerUserPerDay > 0 {
		a.LimitPerUserPerDay = req.LimitPerUserPerDay
	}
	if req.Active != nil {
		a.Active = *req.Active
	}

	if err := s.DB.Create(&a).Error; err != nil {
		log.Printf("DB Error creating activity: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create activity"})
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

// UpdateActivity edits an activity (Admin only).
func (s *ActivityService) UpdateActivity(c *fiber.Ctx) error {
	id := c.Params("id")
	var existing models.Activity
	if err := s.DB.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Activity not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Title              *string           `json:"title"`
		Active             *bool             `json:"active"`
		LimitPerUserPerDay *int              `json:"limit_per_user_per_day"`
		Prompts            map[string]string `json:"prompts"`
		EndsAt             *time.Time        `json:"ends_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Title != nil {
		existing.Title = *req.Title
		existing.Slug = slug.Make(*req.Title)
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}
	if req.LimitPerUserPerDay != nil && *req.LimitPerUserPerDay > 0 {
		existing.LimitPerUserPerDay = *req.LimitPerUserPerDay
	}
	if req.Prompts != nil {
		existing.Prompts = req.Prompts
	}
	if req.EndsAt != nil {
		existing.EndsAt = req.EndsAt
	}

	if err := s.DB.Save(&existing).Error; err != nil {
		log.Printf("DB Error updating activity: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update activity"})
	}
	return c.JSON(existing)
}

// DeleteActivity removes an activity (Admin only). Ledger entries that
// reference it are kept; the ledger is append-only.
func (s *ActivityService) DeleteActivity(c *fiber.Ctx) error {
	id := c.Params("id")
	var a models.Activity
	if err := s.DB.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Activity not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if err := s.DB.Delete(&a).Error; err != nil {
		log.Printf("DB Error deleting activity: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete activity"})
	}
	return c.JSON(fiber.Map{"message": "Activity deleted successfully"})
}
