package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bumpspot/server/cache"
	"github.com/bumpspot/server/config"
	mw "github.com/bumpspot/server/middleware"
	"github.com/bumpspot/server/model"
	"github.com/bumpspot/server/presence"
	"github.com/bumpspot/server/relation"
	"github.com/bumpspot/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger, _ := zap.NewDevelopment()
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTL: time.Hour}

	relSvc := relation.NewService(db, nil, config.SocialConfig{SearchMinChars: 3}, logger)
	presSvc := presence.NewService(db, c, ps, relSvc, nil, config.PresenceConfig{}, logger)

	authH := NewAuthHandler(db, c, sec)
	relH := NewRelationshipHandler(relSvc)
	presH := NewPresenceHandler(presSvc)
	placeH := NewPlaceHandler(db, presSvc)

	r := gin.New()
	r.POST("/api/auth/login", authH.Login)
	r.POST("/api/auth/logout", authH.Logout)

	auth := mw.Auth(sec, c)
	rels := r.Group("/api/relationships", auth)
	{
		rels.GET("", relH.List)
		rels.POST("", relH.Propose)
		rels.GET("/candidates", relH.Candidates)
		rels.POST("/:id/accept", relH.Accept)
		rels.DELETE("/:id", relH.Remove)
		rels.PUT("/:id/hope-to-bump", relH.SetHopeToBump)
	}
	checkins := r.Group("/api/checkins", auth)
	{
		checkins.POST("", presH.Create)
		checkins.GET("", presH.ListActive)
		checkins.GET("/by-place", presH.ByPlace)
		checkins.GET("/history", presH.History)
		checkins.PATCH("/:id", presH.Update)
		checkins.DELETE("/:id", presH.Expire)
	}
	places := r.Group("/api/places", auth)
	{
		places.GET("", placeH.List)
		places.POST("", placeH.Create)
		places.GET("/popular", placeH.Popular)
	}

	return &testServer{router: r, db: db, cache: c, sec: sec}
}

// login creates the profile on first use and returns token and user id.
func (s *testServer) login(t *testing.T, handle string) (string, int64) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/login", "",
		gin.H{"handle": handle, "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token  string `json:"token"`
		UserID int64  `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token, resp.UserID
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) place(t *testing.T, name string) int64 {
	t.Helper()
	p := &model.Place{Name: name}
	require.NoError(t, s.db.Create(p).Error)
	return p.ID
}

// data unmarshals the "data" envelope of a successful response into out.
func data(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
