package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ringsight/ringsight/models"
)

// GormUsers implements Users on a gorm connection.
type GormUsers struct {
	db *gorm.DB
}

// NewGormUsers wraps db.
func NewGormUsers(db *gorm.DB) *GormUsers { return &GormUsers{db: db} }

func (s *GormUsers) UpsertIdentity(ctx context.Context, ouraUserID, email string, tok OAuthToken) (*models.User, error) {
	user := models.User{
		OuraUserID:     ouraUserID,
		Email:          email,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenExpiresAt: tok.ExpiresAt,
	}
	// Single atomic statement so concurrent callbacks for the same identity
	// resolve to last-writer-wins.
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "oura_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "access_token", "refresh_token", "token_expires_at", "updated_at",
		}),
	}).Create(&user).Error
	if err != nil {
		return nil, err
	}

	// Re-read to get the surrogate id on the conflict path.
	var out models.User
	if err := s.db.WithContext(ctx).Where("oura_user_id = ?", ouraUserID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormUsers) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *GormUsers) SaveToken(ctx context.Context, id uint, tok OAuthToken) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"access_token":     tok.AccessToken,
		"refresh_token":    tok.RefreshToken,
		"token_expires_at": tok.ExpiresAt,
	}).Error
}

// GormMetrics implements Metrics on a gorm connection.
type GormMetrics struct {
	db *gorm.DB
}

// NewGormMetrics wraps db.
func NewGormMetrics(db *gorm.DB) *GormMetrics { return &GormMetrics{db: db} }

func userDayConflict(updates ...string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}
}

func (s *GormMetrics) UpsertSleep(ctx context.Context, rec *models.DailySleep) error {
	return s.db.WithContext(ctx).Clauses(userDayConflict(
		"oura_id", "score", "timestamp", "contributors", "raw_data",
	)).Create(rec).Error
}

func (s *GormMetrics) UpsertActivity(ctx context.Context, rec *models.DailyActivity) error {
	return s.db.WithContext(ctx).Clauses(userDayConflict(
		"oura_id", "score", "active_calories", "steps", "timestamp", "contributors", "raw_data",
	)).Create(rec).Error
}

func (s *GormMetrics) UpsertReadiness(ctx context.Context, rec *models.DailyReadiness) error {
	return s.db.WithContext(ctx).Clauses(userDayConflict(
		"oura_id", "score", "temperature_deviation", "timestamp", "contributors", "raw_data",
	)).Create(rec).Error
}

func (s *GormMetrics) ListSleep(ctx context.Context, userID uint, sinceDay string, limit int) ([]models.DailySleep, error) {
	var rows []models.DailySleep
	err := s.listQuery(ctx, userID, sinceDay, limit).Find(&rows).Error
	return rows, err
}

func (s *GormMetrics) ListActivity(ctx context.Context, userID uint, sinceDay string, limit int) ([]models.DailyActivity, error) {
	var rows []models.DailyActivity
	err := s.listQuery(ctx, userID, sinceDay, limit).Find(&rows).Error
	return rows, err
}

func (s *GormMetrics) ListReadiness(ctx context.Context, userID uint, sinceDay string, limit int) ([]models.DailyReadiness, error) {
	var rows []models.DailyReadiness
	err := s.listQuery(ctx, userID, sinceDay, limit).Find(&rows).Error
	return rows, err
}

func (s *GormMetrics) listQuery(ctx context.Context, userID uint, sinceDay string, limit int) *gorm.DB {
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND day >= ?", userID, sinceDay).
		Order("day DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// GormChats implements Chats on a gorm connection.
type GormChats struct {
	db *gorm.DB
}

// NewGormChats wraps db.
func NewGormChats(db *gorm.DB) *GormChats { return &GormChats{db: db} }

func (s *GormChats) Append(ctx context.Context, userID uint, role, content string) error {
	return s.db.WithContext(ctx).Create(&models.ChatMessage{
		UserID:  userID,
		Role:    role,
		Content: content,
	}).Error
}

func (s *GormChats) Recent(ctx context.Context, userID uint, limit int) ([]models.ChatMessage, error) {
	var rows []models.ChatMessage
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		// id breaks ties between turns appended in the same instant
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
