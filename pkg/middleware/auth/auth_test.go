package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scienceol/seqpanel/internal/config"
	"github.com/scienceol/seqpanel/pkg/repo/model"
	"github.com/scienceol/seqpanel/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, mw gin.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := gin.New()
	var who string
	g.GET("/x", mw, func(ctx *gin.Context) {
		who = OperatorName(ctx)
		ctx.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w, who
}

func withAuth(t *testing.T, f func(a *config.Auth, actor *config.Actor)) {
	t.Helper()
	conf := config.Global()
	auth, actor := conf.Auth, conf.Actor
	t.Cleanup(func() {
		conf.Auth, conf.Actor = auth, actor
	})
	f(&conf.Auth, &conf.Actor)
}

func TestAuthNone(t *testing.T) {
	withAuth(t, func(a *config.Auth, _ *config.Actor) { a.AuthSource = config.AuthNone })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w, who := serve(t, AuthWeb(), req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "operator", who)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(OperatorHeader, "alice")
	_, who = serve(t, AuthWeb(), req)
	assert.Equal(t, "alice", who)
}

func TestAuthJWT(t *testing.T) {
	withAuth(t, func(a *config.Auth, _ *config.Actor) {
		a.AuthSource = config.AuthJWT
		a.JWTSecret = "s3cret"
	})
	token, err := utils.SignJWT([]byte("s3cret"), "bob", time.Hour)
	require.NoError(t, err)
	forged, err := utils.SignJWT([]byte("other"), "bob", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		who    string
	}{
		{"header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent, "bob"},
		{"query", func(r *http.Request) { r.URL.RawQuery = "access_token=" + token }, http.StatusNoContent, "bob"},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"format", func(r *http.Request) { r.Header.Set("Authorization", token) }, http.StatusUnauthorized, ""},
		{"forged", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) }, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			tt.setup(req)
			w, who := serve(t, AuthWeb(), req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.who, who)
		})
	}
}

func TestAuthActor(t *testing.T) {
	withAuth(t, func(_ *config.Auth, actor *config.Actor) { actor.Token = "tron" })

	req := httptest.NewRequest(http.MethodGet, "/x?access_token=tron", nil)
	w, _ := serve(t, AuthActor(), req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer tron")
	w, _ = serve(t, AuthActor(), req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/x?access_token=nope", nil)
	w, _ = serve(t, AuthActor(), req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	withAuth(t, func(_ *config.Auth, actor *config.Actor) { actor.Token = "" })
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	w, _ = serve(t, AuthActor(), req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOperatorName(t *testing.T) {
	assert.Equal(t, "operator", OperatorName(context.Background()))
	//nolint:staticcheck
	ctx := context.WithValue(context.Background(), USERKEY, &model.UserData{ID: "u1"})
	assert.Equal(t, "u1", OperatorName(context.WithoutCancel(ctx)))
}
