package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/ringsight/ringsight/models"
	"github.com/ringsight/ringsight/oura"
	"github.com/ringsight/ringsight/store"
)

type fakeUsers struct {
	user       *models.User
	savedToken *store.OAuthToken
}

func (f *fakeUsers) UpsertIdentity(ctx context.Context, ouraUserID, email string, tok store.OAuthToken) (*models.User, error) {
	if f.user == nil || f.user.OuraUserID != ouraUserID {
		f.user = &models.User{ID: uint(1), OuraUserID: ouraUserID, Email: email}
	}
	f.user.Email = email
	f.user.AccessToken = tok.AccessToken
	f.user.RefreshToken = tok.RefreshToken
	f.user.TokenExpiresAt = tok.ExpiresAt
	return f.user, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, store.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeUsers) SaveToken(ctx context.Context, id uint, tok store.OAuthToken) error {
	f.savedToken = &tok
	return nil
}

type fakeMetrics struct {
	sleep     []models.DailySleep
	activity  []models.DailyActivity
	readiness []models.DailyReadiness
	failNext  error
}

func (f *fakeMetrics) UpsertSleep(ctx context.Context, rec *models.DailySleep) error {
	if f.failNext != nil {
		return f.failNext
	}
	for i := range f.sleep {
		if f.sleep[i].UserID == rec.UserID && f.sleep[i].Day == rec.Day {
			f.sleep[i] = *rec
			return nil
		}
	}
	f.sleep = append(f.sleep, *rec)
	return nil
}

func (f *fakeMetrics) UpsertActivity(ctx context.Context, rec *models.DailyActivity) error {
	if f.failNext != nil {
		return f.failNext
	}
	for i := range f.activity {
		if f.activity[i].UserID == rec.UserID && f.activity[i].Day == rec.Day {
			f.activity[i] = *rec
			return nil
		}
	}
	f.activity = append(f.activity, *rec)
	return nil
}

func (f *fakeMetrics) UpsertReadiness(ctx context.Context, rec *models.DailyReadiness) error {
	if f.failNext != nil {
		return f.failNext
	}
	for i := range f.readiness {
		if f.readiness[i].UserID == rec.UserID && f.readiness[i].Day == rec.Day {
			f.readiness[i] = *rec
			return nil
		}
	}
	f.readiness = append(f.readiness, *rec)
	return nil
}

func (f *fakeMetrics) ListSleep(ctx context.Context, userID uint, sinceDay string, limit int) ([]models.DailySleep, error) {
	var out []models.DailySleep
	for _, r := range f.sleep {
		if r.UserID == userID && r.Day >= sinceDay {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMetrics) ListActivity(ctx context.Context, userID uint, sinceDay string, limit int) ([]models.DailyActivity, error) {
	var out []models.DailyActivity
	for _, r := range f.activity {
		if r.UserID == userID && r.Day >= sinceDay {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMetrics) ListReadiness(ctx context.Context, userID uint, sinceDay string, limit int) ([]models.DailyReadiness, error) {
	var out []models.DailyReadiness
	for _, r := range f.readiness {
		if r.UserID == userID && r.Day >= sinceDay {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubFetcher struct {
	sleep        []oura.DailyRecord
	activity     []oura.DailyRecord
	readiness    []oura.DailyRecord
	sleepErr     error
	activityErr  error
	readinessErr error
	seenToken    string
}

func (s *stubFetcher) DailySleep(ctx context.Context, accessToken, start, end string) ([]oura.DailyRecord, error) {
	s.seenToken = accessToken
	return s.sleep, s.sleepErr
}

func (s *stubFetcher) DailyActivity(ctx context.Context, accessToken, start, end string) ([]oura.DailyRecord, error) {
	return s.activity, s.activityErr
}

func (s *stubFetcher) DailyReadiness(ctx context.Context, accessToken, start, end string) ([]oura.DailyRecord, error) {
	return s.readiness, s.readinessErr
}

type stubRefresher struct {
	token     oura.Token
	err       error
	refreshed bool
}

func (s *stubRefresher) Refresh(ctx context.Context, refreshToken string) (oura.Token, error) {
	s.refreshed = true
	return s.token, s.err
}

func intPtr(v int) *int { return &v }

func dailyRecords(n int, score int) []oura.DailyRecord {
	recs := make([]oura.DailyRecord, 0, n)
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		day := base.AddDate(0, 0, -i).Format("2006-01-02")
		recs = append(recs, oura.DailyRecord{
			ID:           "rec-" + day,
			Day:          day,
			Score:        intPtr(score),
			Contributors: map[string]any{"efficiency": 80},
			Raw:          map[string]any{"day": day, "score": score},
		})
	}
	return recs
}

func validUser() *models.User {
	return &models.User{
		ID:             1,
		OuraUserID:     "u123",
		Email:          "a@b.com",
		AccessToken:    "valid-token",
		RefreshToken:   "refresh-token",
		TokenExpiresAt: time.Now().Add(12 * time.Hour),
	}
}

func TestSyncUser_CountsMatchVendorRecords(t *testing.T) {
	users := &fakeUsers{}
	metrics := &fakeMetrics{}
	fetcher := &stubFetcher{
		sleep:     dailyRecords(5, 80),
		activity:  dailyRecords(5, 70),
		readiness: dailyRecords(3, 90),
	}

	svc := NewSyncService(users, metrics, fetcher, &stubRefresher{})

	result, err := svc.SyncUser(context.Background(), validUser())
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}

	if result.Sleep != 5 || result.Activity != 5 || result.Readiness != 3 {
		t.Errorf("result = %+v, want 5/5/3", result)
	}
	if len(metrics.sleep) != 5 || len(metrics.activity) != 5 || len(metrics.readiness) != 3 {
		t.Errorf("stored rows = %d/%d/%d, want 5/5/3",
			len(metrics.sleep), len(metrics.activity), len(metrics.readiness))
	}
}

func TestSyncUser_SecondSyncOverwritesSameDay(t *testing.T) {
	users := &fakeUsers{}
	metrics := &fakeMetrics{}
	fetcher := &stubFetcher{sleep: dailyRecords(3, 60)}

	svc := NewSyncService(users, metrics, fetcher, &stubRefresher{})

	if _, err := svc.SyncUser(context.Background(), validUser()); err != nil {
		t.Fatalf("first sync error = %v", err)
	}
	fetcher.sleep = dailyRecords(3, 95)
	if _, err := svc.SyncUser(context.Background(), validUser()); err != nil {
		t.Fatalf("second sync error = %v", err)
	}

	if len(metrics.sleep) != 3 {
		t.Fatalf("rows = %d, want 3 (overwritten, not accumulated)", len(metrics.sleep))
	}
	for _, row := range metrics.sleep {
		if row.Score == nil || *row.Score != 95 {
			t.Errorf("day %s score = %v, want the second sync's 95", row.Day, row.Score)
		}
	}
}

func TestSyncUser_AnyFetchFailureFailsWholeSync(t *testing.T) {
	users := &fakeUsers{}
	metrics := &fakeMetrics{}
	fetcher := &stubFetcher{
		sleep:       dailyRecords(2, 80),
		readiness:   dailyRecords(2, 85),
		activityErr: &oura.APIError{Status: 500, Body: "upstream down"},
	}

	svc := NewSyncService(users, metrics, fetcher, &stubRefresher{})

	if _, err := svc.SyncUser(context.Background(), validUser()); err == nil {
		t.Fatal("expected sync to fail when one fetch fails")
	}
	if len(metrics.sleep)+len(metrics.activity)+len(metrics.readiness) != 0 {
		t.Error("no rows should be written when the fetch join fails")
	}
}

func TestSyncUser_RefreshesExpiredToken(t *testing.T) {
	users := &fakeUsers{}
	metrics := &fakeMetrics{}
	fetcher := &stubFetcher{}
	refresher := &stubRefresher{
		token: oura.Token{
			AccessToken:  "fresh-token",
			RefreshToken: "fresh-refresh",
			ExpiresAt:    time.Now().Add(24 * time.Hour),
		},
	}

	svc := NewSyncService(users, metrics, fetcher, refresher)

	user := validUser()
	user.TokenExpiresAt = time.Now().Add(-time.Hour)

	if _, err := svc.SyncUser(context.Background(), user); err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}

	if !refresher.refreshed {
		t.Error("expired token should trigger a refresh")
	}
	if users.savedToken == nil || users.savedToken.AccessToken != "fresh-token" {
		t.Error("refreshed token should be persisted before use")
	}
	if fetcher.seenToken != "fresh-token" {
		t.Errorf("fetch used token %q, want the refreshed one", fetcher.seenToken)
	}
}

func TestSyncUser_NoRefreshWhileTokenValid(t *testing.T) {
	refresher := &stubRefresher{}
	svc := NewSyncService(&fakeUsers{}, &fakeMetrics{}, &stubFetcher{}, refresher)

	if _, err := svc.SyncUser(context.Background(), validUser()); err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if refresher.refreshed {
		t.Error("valid token should not be refreshed")
	}
}

func TestSyncUser_RefreshFailureFailsSync(t *testing.T) {
	refresher := &stubRefresher{err: errors.New("refresh rejected")}
	svc := NewSyncService(&fakeUsers{}, &fakeMetrics{}, &stubFetcher{}, refresher)

	user := validUser()
	user.TokenExpiresAt = time.Now().Add(-time.Hour)

	if _, err := svc.SyncUser(context.Background(), user); err == nil {
		t.Fatal("expected sync to fail when the refresh fails")
	}
}
