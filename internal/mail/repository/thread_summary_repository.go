package repository

import (
	"errors"
	"time"

	"sage-backend/internal/mail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ThreadSummaryRepository caches summaries per user and thread. A cached row is only
// valid while its LatestMessageID matches the thread's newest message.
type ThreadSummaryRepository interface {
	GetSummary(userID, threadID string) (*domain.ThreadSummary, error)
	SaveSummary(userID, threadID, latestMessageID string, result domain.SummaryResult) error
	DeleteSummary(userID, threadID string) error
}

type threadSummaryRepository struct {
	db *gorm.DB
}

func NewThreadSummaryRepository(db *gorm.DB) ThreadSummaryRepository {
	return &threadSummaryRepository{db: db}
}

// GetSummary returns (nil, nil) when nothing is cached.
func (r *threadSummaryRepository) GetSummary(userID, threadID string) (*domain.ThreadSummary, error) {
	var summary domain.ThreadSummary
	err := r.db.Where("user_id = ? AND thread_id = ?", userID, threadID).First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// SaveSummary creates or replaces the cached summary for a thread.
func (r *threadSummaryRepository) SaveSummary(userID, threadID, latestMessageID string, result domain.SummaryResult) error {
	existing, err := r.GetSummary(userID, threadID)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing == nil {
		return r.db.Create(&domain.ThreadSummary{
			ID:              uuid.New().String(),
			UserID:          userID,
			ThreadID:        threadID,
			LatestMessageID: latestMessageID,
			Bullets:         domain.StringArray(result.Bullets),
			Category:        string(result.Category),
			CreatedAt:       now,
		}).Error
	}

	existing.LatestMessageID = latestMessageID
	existing.Bullets = domain.StringArray(result.Bullets)
	existing.Category = string(result.Category)
	existing.CreatedAt = now
	return r.db.Save(existing).Error
}

func (r *threadSummaryRepository) DeleteSummary(userID, threadID string) error {
	return r.db.Where("user_id = ? AND thread_id = ?", userID, threadID).Delete(&domain.ThreadSummary{}).Error
}
