package middleware

import (
	"log"
	"strings"

	"mitche-engagement-service/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Role is the caller's capability for this request, resolved once by
// UserContextMiddleware. Handlers branch on the enum instead of re-reading
// headers or the user record.
type Role string

const (
	RoleGuest        Role = "guest"
	RoleCitizen      Role = "citizen"
	RoleOrganization Role = "organization"
	RoleAdmin        Role = "admin"
)

// rolePrecedence orders roles so the strongest forwarded role wins.
var rolePrecedence = map[Role]int{
	RoleGuest:        0,
	RoleCitizen:      1,
	RoleOrganization: 2,
	RoleAdmin:        3,
}

// ParseRoles resolves the gateway's comma-separated X-User-Roles header
// into a single Role, picking the strongest recognized one.
func ParseRoles(header string) Role {
	resolved := RoleGuest
	for _, raw := range strings.Split(header, ",") {
		r := Role(strings.ToLower(strings.TrimSpace(raw)))
		if _, known := rolePrecedence[r]; known && rolePrecedence[r] > rolePrecedence[resolved] {
			resolved = r
		}
	}
	return resolved
}

// UserContextMiddleware extracts the caller identity forwarded by the
// Gateway and resolves their Role. When the gateway did not forward roles,
// the user mirror's role field is the fallback — the same two-step
// claim-then-record lookup the clients rely on, done exactly once here.
func UserContextMiddleware(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "unauthenticated",
				"message": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		role := ParseRoles(c.Get("X-User-Roles"))
		if role == RoleGuest && db != nil {
			var user models.User
			if err := db.Select("role").Where("external_user_id = ?", userID).First(&user).Error; err == nil {
				role = ParseRoles(user.Role)
			}
		}
		if role == RoleGuest {
			// Authenticated but unknown role: treat as citizen.
			role = RoleCitizen
		}

		c.Locals("user_id", userID)
		c.Locals("user_role", role)

		log.Printf("👤 [USER_CTX] UserID=%s, Role=%s | Path: %s", userID, role, c.Path())
		return c.Next()
	}
}

// RoleFromContext returns the resolved role, RoleGuest when unresolved.
func RoleFromContext(c *fiber.Ctx) Role {
	if r, ok := c.Locals("user_role").(Role); ok {
		return r
	}
	return RoleGuest
}

// RequireRole rejects callers below the given role.
func RequireRole(min Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := RoleFromContext(c)
		if rolePrecedence[role] < rolePrecedence[min] {
			log.Printf("🚫 [USER_CTX] Role %s denied (requires %s) on %s", role, min, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "permission-denied",
				"message": "caller lacks required role",
			})
		}
		return c.Next()
	}
}
