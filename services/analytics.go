package services

import (
	"log"

	"mitche-engagement-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnalyticsService appends best-effort activity traces. Failures here are
// logged and dropped; they must never fail the primary operation.
type AnalyticsService struct {
	DB *gorm.DB
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{DB: db}
}

func (s *AnalyticsService) Record(eventType, userID string, payload map[string]any) {
	ev := models.AnalyticsEvent{
		ID:      uuid.NewString(),
		Type:    eventType,
		UserID:  userID,
		Payload: payload,
	}
	if err := s.DB.Create(&ev).Error; err != nil {
		log.Printf("⚠️ [ANALYTICS] Dropped event %s for %s: %v", eventType, userID, err)
	}
}
