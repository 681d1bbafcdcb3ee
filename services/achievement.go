package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"mitche-engagement-service/models"
	"mitche-engagement-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AchievementService evaluates threshold achievements and exposes the
// admin CRUD over the catalog.
type AchievementService struct {
	DB *gorm.DB
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{DB: db}
}

// SeedCatalog inserts the default achievements if they are missing.
// Existing rows (matched by code) are left untouched so admin edits
// survive restarts.
func (s *AchievementService) SeedCatalog() error {
	for _, a := range models.AchievementSeed {
		a.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&a).Error; err != nil {
			return WrapError(err, "failed to seed achievement catalog")
		}
	}
	return nil
}

// EvaluateForUser awards every hope-point achievement the user now
// qualifies for and returns the newly awarded ones.
//
// Each award is an insert-if-absent: the composite unique index on
// user_achievements plus OnConflict DoNothing means a concurrent duplicate
// evaluation cannot double-award. Partial success across distinct
// achievements is acceptable; a failed insert is logged and skipped.
func (s *AchievementService) EvaluateForUser(externalUserID string) ([]models.Achievement, error) {
	var user models.User
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, WrapError(err, "failed to load user for evaluation")
	}

	var achievements []models.Achievement
	if err := s.DB.Where("criteria_type = ? AND active = ?", models.CriteriaHopePoints, true).
		Find(&achievements).Error; err != nil {
		return nil, WrapError(err, "failed to load achievement catalog")
	}

	var awarded []models.Achievement
	for _, a := range achievements {
		if user.HopePoints < a.CriteriaValue {
			continue
		}
		ua := models.UserAchievement{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			AchievementID:  a.ID,
			Progress:       a.CriteriaValue,
			Completed:      true,
		}
		res := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).Create(&ua)
		if res.Error != nil {
			log.Printf("⚠️ [ACHIEVEMENT] Award insert failed for %s/%s: %v", externalUserID, a.Code, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			awarded = append(awarded, a)
			achievementsAwardedTotal.Inc()
			log.Printf("🎖️ Achievement awarded: %s → %s", a.Name, externalUserID)
		}
	}
	return awarded, nil
}

// EarnedByUser returns the user's achievements joined with the catalog.
func (s *AchievementService) EarnedByUser(externalUserID string) ([]fiber.Map, error) {
	type row struct {
		models.UserAchievement
		Code        string
		Name        string
		Description string
		IconURL     string
		Rarity      string
	}
	var rows []row
	err := s.DB.Model(&models.UserAchievement{}).
		Select("user_achievements.*, achievements.code, achievements.name, achievements.description, achievements.icon_url, achievements.rarity").
		Joins("JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.external_user_id = ?", externalUserID).
		Order("user_achievements.awarded_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, WrapError(err, "failed to load user achievements")
	}

	out := make([]fiber.Map, 0, len(rows))
	for _, r := range rows {
		out = append(out, fiber.Map{
			"id":             r.UserAchievement.ID,
			"achievement_id": r.AchievementID,
			"code":           r.Code,
			"name":           r.Name,
			"description":    r.Description,
			"icon_url":       r.IconURL,
			"rarity":         r.Rarity,
			"progress":       r.Progress,
			"awarded_at":     r.AwardedAt,
		})
	}
	return out, nil
}

// --- Admin Handlers ---

// ListAchievements returns the full catalog (Admin only).
func (s *AchievementService) ListAchievements(c *fiber.Ctx) error {
	var achievements []models.Achievement
	if err := s.DB.Order("criteria_value ASC").Find(&achievements).Error; err != nil {
		log.Printf("DB Error fetching achievements: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch achievements"})
	}
	return c.JSON(achievements)
}

// CreateAchievement adds a new threshold achievement (Admin only).
func (s *AchievementService) CreateAchievement(c *fiber.Ctx) error {
	var req struct {
		Code          string `json:"code"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		Rarity        string `json:"rarity"`
		CriteriaType  string `json:"criteria_type"`
		CriteriaValue int64  `json:"criteria_value"`
		Active        *bool  `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Code == "" || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code and name are required"})
	}
	if req.CriteriaValue <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "criteria_value must be positive"})
	}

	a := models.Achievement{
		ID:            uuid.NewString(),
		Code:          strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:          req.Name,
		Description:   req.Description,
		Rarity:        req.Rarity,
		CriteriaType:  models.CriteriaHopePoints,
		CriteriaValue: req.CriteriaValue,
		Active:        true,
	}
	if req.CriteriaType != "" {
		a.CriteriaType = req.CriteriaType
	}
	if a.Rarity == "" {
		a.Rarity = "common"
	}
	if req.Active != nil {
		a.Active = *req.Active
	}

	if err := s.DB.Create(&a).Error; err != nil {
		log.Printf("DB Error creating achievement: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create achievement"})
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

// UpdateAchievement edits catalog fields (Admin only). The criteria can be
// tightened or loosened; already-awarded achievements are never revoked.
func (s *AchievementService) UpdateAchievement(c *fiber.Ctx) error {
	id := c.Params("id")
	var existing models.Achievement
	if err := s.DB.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Achievement not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Name          *string `json:"name"`
		Description   *string `json:"description"`
		Rarity        *string `json:"rarity"`
		CriteriaValue *int64  `json:"criteria_value"`
		Active        *bool   `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.Rarity != nil {
		existing.Rarity = *req.Rarity
	}
	if req.CriteriaValue != nil {
		if *req.CriteriaValue <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "criteria_value must be positive"})
		}
		existing.CriteriaValue = *req.CriteriaValue
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	if err := s.DB.Save(&existing).Error; err != nil {
		log.Printf("DB Error updating achievement: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update achievement"})
	}
	return c.JSON(existing)
}

// DeleteAchievement removes a catalog entry (Admin only). Earned
// user_achievements rows are kept: completion history is permanent.
func (s *AchievementService) DeleteAchievement(c *fiber.Ctx) error {
	id := c.Params("id")
	var a models.Achievement
	if err := s.DB.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Achievement not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if err := s.DB.Delete(&a).Error; err != nil {
		log.Printf("DB Error deleting achievement: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete achievement"})
	}
	return c.JSON(fiber.Map{"message": "Achievement deleted successfully"})
}

// UploadAchievementIcon stores an icon image and attaches its URL to the
// achievement (Admin only). Goes to R2 when configured, local uploads
// directory otherwise.
func (s *AchievementService) UploadAchievementIcon(c *fiber.Ctx) error {
	id := c.Params("id")
	var a models.Achievement
	if err := s.DB.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Achievement not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	fileHeader, err := c.FormFile("icon")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon file is required"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	filename := fmt.Sprintf("achievements/%s%s", a.ID, ext)

	var iconURL string
	if utils.R2Enabled() {
		iconURL, err = utils.UploadFileToR2(fileHeader, filename)
	} else {
		iconURL, err = utils.SaveUpload(fileHeader, filename)
	}
	if err != nil {
		log.Printf("Icon upload failed for achievement %s: %v", a.Code, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store icon"})
	}

	a.IconURL = iconURL
	if err := s.DB.Save(&a).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update achievement"})
	}
	return c.JSON(fiber.Map{"message": "Icon uploaded", "icon_url": iconURL})
}
