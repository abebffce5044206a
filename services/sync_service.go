package services

import (
	"context"
	"sync"
	"time"

	"github.com/ringsight/ringsight/models"
	"github.com/ringsight/ringsight/oura"
	"github.com/ringsight/ringsight/store"
	"github.com/ringsight/ringsight/utils"
)

// syncWindowDays is the fixed range pulled on every sync.
const syncWindowDays = 30

// refreshLeeway forces a refresh when the access token is this close to expiry.
const refreshLeeway = time.Minute

// TokenRefresher exchanges a refresh token for a fresh token set.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (oura.Token, error)
}

// SyncResult reports how many records the vendor returned per variant.
type SyncResult struct {
	Sleep     int `json:"sleep"`
	Activity  int `json:"activity"`
	Readiness int `json:"readiness"`
}

// SyncService pulls the last 30 days of daily summaries from the vendor and
// replaces the stored rows keyed by (user, day).
type SyncService struct {
	users     store.Users
	metrics   store.Metrics
	fetcher   oura.Fetcher
	refresher TokenRefresher
}

// NewSyncService wires the sync pipeline.
func NewSyncService(users store.Users, metrics store.Metrics, fetcher oura.Fetcher, refresher TokenRefresher) *SyncService {
	return &SyncService{users: users, metrics: metrics, fetcher: fetcher, refresher: refresher}
}

// SyncUser runs one full sync for the user. Any vendor failure fails the whole
// sync; upserts already committed stay put and the next attempt repairs the
// rest, so retrying is always safe.
func (s *SyncService) SyncUser(ctx context.Context, user *models.User) (SyncResult, error) {
	accessToken, err := s.freshAccessToken(ctx, user)
	if err != nil {
		return SyncResult{}, err
	}

	startDate, endDate := utils.DayRange(syncWindowDays)

	var (
		wg        sync.WaitGroup
		sleep     []oura.DailyRecord
		activity  []oura.DailyRecord
		readiness []oura.DailyRecord
		errOnce   sync.Once
		fetchErr  error
	)
	fail := func(err error) {
		if err != nil {
			errOnce.Do(func() { fetchErr = err })
		}
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		sleep, err = s.fetcher.DailySleep(ctx, accessToken, startDate, endDate)
		fail(err)
	}()
	go func() {
		defer wg.Done()
		var err error
		activity, err = s.fetcher.DailyActivity(ctx, accessToken, startDate, endDate)
		fail(err)
	}()
	go func() {
		defer wg.Done()
		var err error
		readiness, err = s.fetcher.DailyReadiness(ctx, accessToken, startDate, endDate)
		fail(err)
	}()
	wg.Wait()

	if fetchErr != nil {
		return SyncResult{}, fetchErr
	}

	for _, rec := range sleep {
		if err := s.metrics.UpsertSleep(ctx, &models.DailySleep{
			OuraID:       rec.ID,
			UserID:       user.ID,
			Day:          rec.Day,
			Score:        rec.Score,
			Timestamp:    rec.Timestamp,
			Contributors: models.JSONMap(rec.Contributors),
			RawData:      models.JSONMap(rec.Raw),
		}); err != nil {
			return SyncResult{}, err
		}
	}

	for _, rec := range activity {
		if err := s.metrics.UpsertActivity(ctx, &models.DailyActivity{
			OuraID:         rec.ID,
			UserID:         user.ID,
			Day:            rec.Day,
			Score:          rec.Score,
			ActiveCalories: rec.ActiveCalories,
			Steps:          rec.Steps,
			Timestamp:      rec.Timestamp,
			Contributors:   models.JSONMap(rec.Contributors),
			RawData:        models.JSONMap(rec.Raw),
		}); err != nil {
			return SyncResult{}, err
		}
	}

	for _, rec := range readiness {
		if err := s.metrics.UpsertReadiness(ctx, &models.DailyReadiness{
			OuraID:               rec.ID,
			UserID:               user.ID,
			Day:                  rec.Day,
			Score:                rec.Score,
			TemperatureDeviation: rec.TemperatureDeviation,
			Timestamp:            rec.Timestamp,
			Contributors:         models.JSONMap(rec.Contributors),
			RawData:              models.JSONMap(rec.Raw),
		}); err != nil {
			return SyncResult{}, err
		}
	}

	// Counts reflect what the vendor returned, not what actually changed.
	return SyncResult{
		Sleep:     len(sleep),
		Activity:  len(activity),
		Readiness: len(readiness),
	}, nil
}

// freshAccessToken refreshes the stored token when it is about to expire and a
// refresh token exists. The refreshed set is persisted before use so a crash
// mid-sync doesn't strand a revoked access token.
func (s *SyncService) freshAccessToken(ctx context.Context, user *models.User) (string, error) {
	if user.RefreshToken == "" || s.refresher == nil {
		return user.AccessToken, nil
	}
	if time.Until(user.TokenExpiresAt) > refreshLeeway {
		return user.AccessToken, nil
	}

	tok, err := s.refresher.Refresh(ctx, user.RefreshToken)
	if err != nil {
		return "", err
	}
	newTok := store.OAuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
	}
	if err := s.users.SaveToken(ctx, user.ID, newTok); err != nil {
		return "", err
	}
	user.AccessToken = tok.AccessToken
	user.RefreshToken = tok.RefreshToken
	user.TokenExpiresAt = tok.ExpiresAt
	return tok.AccessToken, nil
}
