// Package oura wraps the Oura cloud OAuth service and the v2 daily summary
// API. Every call is a single attempt: no retry, no backoff, and no pagination
// handling (the vendor may truncate long ranges).
package oura

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

// Scopes requested during authorization.
const Scopes = "email personal daily heartrate workout session"

// Token is the credential set returned by the token endpoint.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// PersonalInfo identifies the Oura account behind an access token.
type PersonalInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// DailyRecord is one day's summary from any of the three daily endpoints.
// Variant-specific fields are zero-valued for the variants that lack them.
// Raw keeps the vendor payload verbatim.
type DailyRecord struct {
	ID                   string         `json:"id"`
	Day                  string         `json:"day"`
	Score                *int           `json:"score"`
	Timestamp            string         `json:"timestamp"`
	ActiveCalories       int            `json:"active_calories"`
	Steps                int            `json:"steps"`
	TemperatureDeviation *float64       `json:"temperature_deviation"`
	Contributors         map[string]any `json:"contributors"`
	Raw                  map[string]any `json:"-"`
}

// TokenExchangeError reports a failed authorization-code or refresh exchange,
// surfacing the vendor's error body when available.
type TokenExchangeError struct {
	Body string
	Err  error
}

func (e *TokenExchangeError) Error() string {
	if e.Body != "" {
		return "oura token exchange failed: " + e.Body
	}
	return "oura token exchange failed: " + e.Err.Error()
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// APIError reports a non-success response from the data API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oura api error: status=%d body=%s", e.Status, e.Body)
}

// Fetcher is the subset of Client the sync pipeline depends on, so tests can
// substitute a deterministic stub.
type Fetcher interface {
	DailySleep(ctx context.Context, accessToken, startDate, endDate string) ([]DailyRecord, error)
	DailyActivity(ctx context.Context, accessToken, startDate, endDate string) ([]DailyRecord, error)
	DailyReadiness(ctx context.Context, accessToken, startDate, endDate string) ([]DailyRecord, error)
}

// Config carries the static client credentials and endpoint bases.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// AuthBaseURL and APIBaseURL default to the Oura cloud endpoints and are
	// overridable for tests.
	AuthBaseURL string
	APIBaseURL  string
}

// Client issues authenticated requests against the Oura API.
type Client struct {
	cfg  Config
	http *resty.Client
}

var _ Fetcher = (*Client)(nil)

// NewClient builds a Client from static configuration.
func NewClient(cfg Config) *Client {
	if cfg.AuthBaseURL == "" {
		cfg.AuthBaseURL = "https://cloud.ouraring.com/oauth"
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.ouraring.com/v2"
	}
	return &Client{
		cfg:  cfg,
		http: resty.New().SetTimeout(30 * time.Second),
	}
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURI,
		Scopes:       strings.Fields(Scopes),
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.cfg.AuthBaseURL + "/authorize",
			TokenURL: c.cfg.AuthBaseURL + "/token",
		},
	}
}

// AuthCodeURL builds the authorization redirect target embedding the CSRF state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauthConfig().AuthCodeURL(state)
}

// Exchange swaps an authorization code for a token set.
func (c *Client) Exchange(ctx context.Context, code string) (Token, error) {
	tok, err := c.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return Token{}, wrapExchangeErr(err)
	}
	return fromOAuth2(tok), nil
}

// Refresh swaps a refresh token for a fresh token set.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	src := c.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, wrapExchangeErr(err)
	}
	res := fromOAuth2(tok)
	if res.RefreshToken == "" {
		res.RefreshToken = refreshToken
	}
	return res, nil
}

func wrapExchangeErr(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return &TokenExchangeError{Body: string(re.Body), Err: err}
	}
	return &TokenExchangeError{Err: err}
}

func fromOAuth2(tok *oauth2.Token) Token {
	return Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}

// PersonalInfo fetches the identity behind an access token.
func (c *Client) PersonalInfo(ctx context.Context, accessToken string) (PersonalInfo, error) {
	var info PersonalInfo
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&info).
		Get(c.cfg.APIBaseURL + "/usercollection/personal_info")
	if err != nil {
		return PersonalInfo{}, err
	}
	if resp.IsError() {
		return PersonalInfo{}, &APIError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}
	return info, nil
}

// DailySleep fetches daily sleep summaries for the inclusive date range.
func (c *Client) DailySleep(ctx context.Context, accessToken, startDate, endDate string) ([]DailyRecord, error) {
	return c.daily(ctx, accessToken, "daily_sleep", startDate, endDate)
}

// DailyActivity fetches daily activity summaries for the inclusive date range.
func (c *Client) DailyActivity(ctx context.Context, accessToken, startDate, endDate string) ([]DailyRecord, error) {
	return c.daily(ctx, accessToken, "daily_activity", startDate, endDate)
}

// DailyReadiness fetches daily readiness summaries for the inclusive date range.
func (c *Client) DailyReadiness(ctx context.Context, accessToken, startDate, endDate string) ([]DailyRecord, error) {
	return c.daily(ctx, accessToken, "daily_readiness", startDate, endDate)
}

func (c *Client) daily(ctx context.Context, accessToken, collection, startDate, endDate string) ([]DailyRecord, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParams(map[string]string{
			"start_date": startDate,
			"end_date":   endDate,
		}).
		Get(c.cfg.APIBaseURL + "/usercollection/" + collection)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}

	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", collection, err)
	}

	records := make([]DailyRecord, 0, len(envelope.Data))
	for _, raw := range envelope.Data {
		var rec DailyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		// Keep the full vendor payload alongside the normalized fields.
		if err := json.Unmarshal(raw, &rec.Raw); err != nil {
			return nil, fmt.Errorf("decode %s raw record: %w", collection, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
