// handlers/admin_routes.go
package handlers

import (
	"log"

	"mitche-engagement-service/middleware"
	"mitche-engagement-service/models"
	"mitche-engagement-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SetupAdminRoutes mounts the admin surface under the secured group
// returned by SetupEngagementRoutes; user context is already resolved
// there, so only the role gate is added here.
func SetupAdminRoutes(
	secured fiber.Router,
	db *gorm.DB,
	ledger *services.LedgerService,
	achievements *services.AchievementService,
	activities *services.ActivityService,
) {
	admin := secured.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))

	// Synthetic ledger traffic for verifying the aggregation pipeline in
	// staging. Entries pass through the same apply path as real grants.
	admin.Post("/ledger/test", func(c *fiber.Ctx) error {
		var req struct {
			ReceiverIDs []string `json:"receiver_ids"`
			Num         int      `json:"num"`
			ActorID     string   `json:"actor_id"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"success": false,
					"error":   "invalid-argument",
					"message": "invalid JSON body",
				})
			}
		}

		if req.Num <= 0 {
			req.Num = 1
		}
		if req.Num > 100 {
			req.Num = 100
		}
		if req.ActorID == "" {
			req.ActorID = c.Locals("user_id").(string)
		}
		if len(req.ReceiverIDs) == 0 {
			// Default to a handful of mirrored users.
			if err := db.Model(&models.User{}).
				Limit(5).
				Pluck("external_user_id", &req.ReceiverIDs).Error; err != nil {
				return respondError(c, services.WrapError(err, "failed to pick test receivers"))
			}
		}
		if len(req.ReceiverIDs) == 0 {
			return respondError(c, services.NewError(services.KindFailedPrecondition, "no receivers available"))
		}

		var written []string
		for _, receiverID := range req.ReceiverIDs {
			for i := 0; i < req.Num; i++ {
				category := models.PointCategories[i%len(models.PointCategories)]
				entry := &models.LedgerEntry{
					ID:         uuid.NewString(),
					ActorID:    req.ActorID,
					ReceiverID: receiverID,
					Category:   category,
					Amount:     int64(1 + i%5),
					Reason:     "admin ledger test",
				}
				stored, err := ledger.Append(entry)
				if err != nil {
					return respondError(c, err)
				}
				if stored != nil {
					written = append(written, stored.ID)
				}
			}
			if _, err := achievements.EvaluateForUser(receiverID); err != nil {
				log.Printf("⚠️ [ADMIN] Achievement evaluation failed for %s: %v", receiverID, err)
			}
		}

		return c.JSON(fiber.Map{
			"success":    true,
			"written":    len(written),
			"ledger_ids": written,
		})
	})

	admin.Post("/ledger/recompute", func(c *fiber.Ctx) error {
		n, err := ledger.RecomputeAll()
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "receivers": n})
	})

	admin.Get("/achievements", achievements.ListAchievements)
	admin.Post("/achievements", achievements.CreateAchievement)
	admin.Put("/achievements/:id", achievements.UpdateAchievement)
	admin.Delete("/achievements/:id", achievements.DeleteAchievement)
	admin.Post("/achievements/:id/icon", achievements.UploadAchievementIcon)

	admin.Get("/activities", activities.ListActivities)
	admin.Post("/activities", activities.CreateActivity)
	admin.Put("/activities/:id", activities.UpdateActivity)
	admin.Delete("/activities/:id", activities.DeleteActivity)
}
