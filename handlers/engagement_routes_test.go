package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mitche-engagement-service/models"
	"mitche-engagement-service/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "routes.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.LedgerEntry{},
		&models.UserAggregate{},
		&models.DailyAggregate{},
		&models.User{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Activity{},
		&models.AnalyticsEvent{},
	))

	ledger := services.NewLedgerService(db)
	achievements := services.NewAchievementService(db)
	analytics := services.NewAnalyticsService(db)
	rituals := services.NewRitualService(db, ledger, achievements, analytics)
	leaderboard := services.NewLeaderboardService(db)
	activities := services.NewActivityService(db)

	app := fiber.New()
	secured := SetupEngagementRoutes(app, db, rituals, leaderboard, achievements, ledger)
	SetupAdminRoutes(secured, db, ledger, achievements, activities)
	return &testEnv{app: app, db: db}
}

func (e *testEnv) seedUser(t *testing.T, externalID, role string) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.User{
		ID:             uuid.NewString(),
		ExternalUserID: externalID,
		Username:       externalID,
		Role:           role,
	}).Error)
}

func (e *testEnv) seedRitual(t *testing.T) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.Activity{
		ID:                 uuid.NewString(),
		Slug:               "daily-reflection",
		Title:              "Daily Reflection",
		Type:               models.ActivityTypeRitual,
		Active:             true,
		LimitPerUserPerDay: 1,
		Prompts:            map[string]string{"en": "What gave you hope today?"},
	}).Error)
}

func decodeBody(t *testing.T, resp io.Reader) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp).Decode(&body))
	return body
}

func TestLeaderboardEndpointEmptyBoard(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/leaderboard", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, true, body["success"])
	assert.Empty(t, body["data"])
}

func TestLeaderboardEndpointRanksAndLimits(t *testing.T) {
	env := newTestEnv(t)
	ledger := services.NewLedgerService(env.db)
	for id, points := range map[string]int64{"A": 10, "B": 30, "C": 20} {
		_, err := ledger.Append(&models.LedgerEntry{
			ActorID:    "seed",
			ReceiverID: id,
			Category:   models.CategoryCommunityGift,
			Amount:     points,
		})
		require.NoError(t, err)
	}

	resp, err := env.app.Test(httptest.NewRequest("GET", "/leaderboard?limit=2", nil))
	require.NoError(t, err)
	body := decodeBody(t, resp.Body)

	data := body["data"].([]any)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	assert.Equal(t, "B", first["id"])
	assert.Equal(t, float64(30), first["points"])
}

func TestAwardRitualEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "user-1", "citizen")
	env.seedRitual(t)

	payload, _ := json.Marshal(map[string]string{"request_id": "req-1"})
	req := httptest.NewRequest("POST", "/s/rituals/award", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["ledger_id"])
	assert.Equal(t, float64(1), body["new_hope_points"])

	// Replay with the same idempotency key.
	req2 := httptest.NewRequest("POST", "/s/rituals/award", bytes.NewReader(payload))
	req2.Header.Set("Content-Type", "application/json")
	req2.Header.Set("X-User-ID", "user-1")

	resp2, err := env.app.Test(req2)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp2.StatusCode)
	body2 := decodeBody(t, resp2.Body)
	assert.Equal(t, true, body2["already_applied"])
	assert.Equal(t, body["ledger_id"], body2["ledger_id"])
}

func TestAwardRitualEndpointRequiresUserContext(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest("POST", "/s/rituals/award", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAwardRitualEndpointDailyCap(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "user-1", "citizen")
	env.seedRitual(t)

	award := func() int {
		req := httptest.NewRequest("POST", "/s/rituals/award", nil)
		req.Header.Set("X-User-ID", "user-1")
		resp, err := env.app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, award())
	assert.Equal(t, fiber.StatusPreconditionFailed, award())
}

func TestUserPointsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "user-1", "citizen")
	env.seedRitual(t)

	req := httptest.NewRequest("POST", "/s/rituals/award", nil)
	req.Header.Set("X-User-ID", "user-1")
	_, err := env.app.Test(req)
	require.NoError(t, err)

	pointsReq := httptest.NewRequest("GET", "/s/user/points", nil)
	pointsReq.Header.Set("X-User-ID", "user-1")
	resp, err := env.app.Test(pointsReq)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(1), body["hope_points"])
	require.NotNil(t, body["daily_history"])
	assert.Len(t, body["daily_history"].([]any), 1)
}

func TestAdminLedgerTestEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin-1", "admin")
	env.seedUser(t, "user-1", "citizen")

	payload, _ := json.Marshal(map[string]any{
		"receiver_ids": []string{"user-1"},
		"num":          3,
	})
	req := httptest.NewRequest("POST", "/s/admin/ledger/test", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "admin-1")
	req.Header.Set("X-User-Roles", "admin")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(3), body["written"])

	var count int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestAdminRequestResolvesUserContextOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin-1", "admin")

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	req := httptest.NewRequest("POST", "/s/admin/ledger/recompute", nil)
	req.Header.Set("X-User-ID", "admin-1")
	req.Header.Set("X-User-Roles", "admin")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The admin group hangs off the secured group: the user-context
	// middleware must run exactly once per request, not once per group.
	assert.Equal(t, 1, strings.Count(buf.String(), "[USER_CTX]"))
}

func TestAdminEndpointsRejectNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "user-1", "citizen")

	req := httptest.NewRequest("POST", "/s/admin/ledger/test", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Roles", "citizen")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
