package ctl

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/scienceol/seqpanel/pkg/common"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsole(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := gin.New()
	c := g.Group("/api/v1/console")
	c.POST("/start", func(ctx *gin.Context) {
		if ctx.GetHeader("X-Confirm") != "true" {
			common.ReplyErr(ctx, code.NotConfirmedErr.WithMsg("start at now"))
			return
		}
		common.ReplyOk(ctx)
	})
	c.GET("/status", func(ctx *gin.Context) {
		common.ReplyOk(ctx, gin.H{"state": "off", "operator": ctx.GetHeader("X-Operator")})
	})
	c.GET("/script", func(ctx *gin.Context) {
		ctx.Data(http.StatusOK, "application/x-yaml", []byte("0:\n  cmdStr: iic bias\n"))
	})
	s := httptest.NewServer(g)
	t.Cleanup(s.Close)
	return s
}

func TestClient(t *testing.T) {
	s := newConsole(t)
	ctx := context.Background()
	env := &Env{Addr: s.URL, Operator: "alice"}

	err := newClient(env, false).do(ctx, http.MethodPost, "/start", nil, nil)
	require.ErrorIs(t, err, code.NotConfirmedErr)
	assert.Equal(t, "operation requires confirmation: start at now", err.Error())
	require.NoError(t, newClient(env, true).do(ctx, http.MethodPost, "/start", nil, nil))

	out := map[string]string{}
	require.NoError(t, newClient(env, false).do(ctx, http.MethodGet, "/status", nil, &out))
	assert.Equal(t, "alice", out["operator"])

	data, err := newClient(env, false).raw(ctx, "/script")
	require.NoError(t, err)
	assert.Equal(t, "0:\n  cmdStr: iic bias\n", string(data))
}

func TestCommands(t *testing.T) {
	s := newConsole(t)
	t.Setenv("SEQPANEL_ADDR", s.URL)

	var buf bytes.Buffer
	cmd := New()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"status"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, buf.String(), `"state": "off"`)

	cmd = New()
	cmd.SetArgs([]string{"start"})
	require.ErrorIs(t, cmd.ExecuteContext(context.Background()), code.NotConfirmedErr)

	cmd = New()
	cmd.SetArgs([]string{"start", "--yes"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
}

func TestParseValues(t *testing.T) {
	vals, err := parseValues([]string{"duplicate=3", "switchOff="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"duplicate": "3", "switchOff": ""}, vals)
	_, err = parseValues([]string{"oops"})
	require.Error(t, err)
}
