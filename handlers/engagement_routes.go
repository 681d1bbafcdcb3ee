// handlers/engagement_routes.go
package handlers

import (
	"errors"
	"strconv"

	"mitche-engagement-service/middleware"
	"mitche-engagement-service/models"
	"mitche-engagement-service/services"
	"mitche-engagement-service/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// respondError maps a service error to its HTTP status and wire shape.
func respondError(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)
	var svcErr *services.Error
	message := err.Error()
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}
	return c.Status(kind.HTTPStatus()).JSON(fiber.Map{
		"success": false,
		"error":   string(kind),
		"message": message,
	})
}

// SetupEngagementRoutes registers the public and secured routes and
// returns the secured group so the admin routes can mount under it
// without running the user-context middleware a second time.
func SetupEngagementRoutes(
	app *fiber.App,
	db *gorm.DB,
	rituals *services.RitualService,
	leaderboard *services.LeaderboardService,
	achievements *services.AchievementService,
	ledger *services.LedgerService,
) fiber.Router {
	// Public: the leaderboard is unauthenticated-safe. An empty aggregate
	// table is an empty board, not an error.
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "100"))
		role := c.Query("role")

		rows, err := leaderboard.TopN(limit, role)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": rows})
	})

	// 🔐 Secured routes — require gateway-forwarded user context.
	secured := app.Group("/s", middleware.UserContextMiddleware(db))

	secured.Post("/rituals/award", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Prompt    string `json:"prompt"`
			RequestID string `json:"request_id"`
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

		locale := utils.MatchLocale(c.Get("Accept-Language"))
		result, err := rituals.AwardRitual(userID, req.RequestID, req.Prompt, locale)
		if err != nil {
			return respondError(c, err)
		}

		if result.AlreadyApplied {
			return c.JSON(fiber.Map{
				"success":         true,
				"already_applied": true,
				"ledger_id":       result.LedgerID,
			})
		}
		return c.JSON(fiber.Map{
			"success":         true,
			"ledger_id":       result.LedgerID,
			"new_hope_points": result.NewHopePoints,
			"new_breakdown":   result.NewBreakdown,
			"prompt":          result.Prompt,
		})
	})

	secured.Get("/user/points", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var user models.User
		if err := db.Where("external_user_id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return respondError(c, services.NewError(services.KindNotFound, "user record not found"))
			}
			return respondError(c, services.WrapError(err, "failed to load user"))
		}

		days, _ := strconv.Atoi(c.Query("days", "30"))
		history, err := ledger.DailyHistory(userID, days)
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"success":               true,
			"hope_points":           user.HopePoints,
			"hope_points_breakdown": user.HopePointsBreakdown,
			"last_ritual_at":        user.LastRitualAt,
			"daily_history":         history,
		})
	})

	secured.Get("/user/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		earned, err := achievements.EarnedByUser(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": earned})
	})

	return secured
}
