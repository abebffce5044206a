package controllers

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ringsight/ringsight/config"
	"github.com/ringsight/ringsight/middleware"
	"github.com/ringsight/ringsight/models"
	"github.com/ringsight/ringsight/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	cfg := config.AppConfig{
		SessionSecret:   "test-secret",
		FrontendBaseURL: "http://localhost:3000",
		SessionTTLDays:  30,
		StateTTLMinutes: 10,
		// No Redis host: the state store and blacklist use their in-memory
		// fallback.
	}
	config.SetForTesting(cfg)
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// injectUser plants an authenticated user the way SessionRequired would.
func injectUser(user *models.User) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(middleware.ContextUserKey, user)
		ctx.Next()
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var e envelope
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("invalid response body %s: %v", body, err)
	}
	return e
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
