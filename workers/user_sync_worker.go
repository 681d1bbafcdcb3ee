// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"mitche-engagement-service/models"
	"mitche-engagement-service/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredProfile matches the JSON the profile service returns for one
// changed account.
type MirroredProfile struct {
	ID           string    `json:"id"`
	ExternalID   string    `json:"external_id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	SymbolicName string    `json:"symbolic_name,omitempty"`
	SymbolicIcon string    `json:"symbolic_icon,omitempty"`
	IsBanned     bool      `json:"is_banned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []MirroredProfile `json:"users"`
}

// UserSyncWorker keeps the local user mirror current with the Mitché
// profile service. It only ever writes identity columns — the hope point
// fields are owned by the engagement pipeline and must never be touched
// by a sync upsert.
type UserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

func NewUserSyncWorker(db *gorm.DB, profileServiceBaseURL, endpointPath, serviceToken string) *UserSyncWorker {
	return &UserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      profileServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting User Sync Worker (profile service → users)…")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSyncTime()); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ User Sync Worker stopped")
			return
		}
	}
}

// lastSyncTime is the most recent UpdatedAt in the local mirror; the next
// batch asks only for profiles changed after it.
func (w *UserSyncWorker) lastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

func (w *UserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call profile service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("profile service returned status %d: %s", resp.StatusCode, string(body))
	}

	var changes profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&changes); err != nil {
		return fmt.Errorf("failed to decode profile service response: %w", err)
	}
	if len(changes.Users) == 0 {
		return nil
	}

	users := make([]models.User, 0, len(changes.Users))
	for _, p := range changes.Users {
		if p.ExternalID == "" {
			continue
		}
		role := p.Role
		if role == "" {
			role = "citizen"
		}
		users = append(users, models.User{
			ID:             uuid.NewString(),
			ExternalUserID: p.ExternalID,
			Username:       p.Username,
			Role:           role,
			SymbolicName:   p.SymbolicName,
			SymbolicIcon:   p.SymbolicIcon,
			IsBanned:       p.IsBanned,
		})
	}
	if len(users) == 0 {
		return nil
	}

	// Identity columns only. Hope point columns are deliberately absent
	// from the assignment list.
	if err := w.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username",
			"role",
			"symbolic_name",
			"symbolic_icon",
			"is_banned",
			"updated_at",
		}),
	}).Create(&users).Error; err != nil {
		return fmt.Errorf("failed to upsert %d user(s): %w", len(users), err)
	}

	log.Printf("📥 Synced %d profile change(s) into users", len(users))
	return nil
}
