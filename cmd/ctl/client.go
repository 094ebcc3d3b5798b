package ctl

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/scienceol/seqpanel/pkg/common"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/sethvargo/go-envconfig"
)

// Env configures the ctl client.
type Env struct {
	Addr     string `env:"SEQPANEL_ADDR, default=http://127.0.0.1:8080"`
	Token    string `env:"SEQPANEL_TOKEN"`
	Operator string `env:"SEQPANEL_OPERATOR"`
}

func LoadEnv(ctx context.Context) (*Env, error) {
	e := &Env{}
	if err := envconfig.Process(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

type client struct {
	c *resty.Client
}

func newClient(e *Env, confirm bool) *client {
	c := resty.New().SetBaseURL(e.Addr + "/api/v1/console")
	if e.Token != "" {
		c.SetAuthToken(e.Token)
	}
	if e.Operator != "" {
		c.SetHeader("X-Operator", e.Operator)
	}
	if confirm {
		c.SetHeader("X-Confirm", "true")
	}
	return &client{c: c}
}

// do sends body and decodes the data of the reply into out, which may be nil.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.c.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return code.UnLogin
	}
	res := &common.Resp{}
	if out != nil {
		res.Data = out
	}
	if err := json.Unmarshal(resp.Body(), res); err != nil {
		return code.ParamErr.WithMsgf("http %d: %s", resp.StatusCode(), resp.String())
	}
	if res.Code != code.Success {
		if res.Error == nil || res.Error.Msg == res.Code.String() {
			return res.Code
		}
		return res.Code.WithMsg(strings.TrimPrefix(res.Error.Msg, res.Code.String()+": "))
	}
	return nil
}

// raw returns the body of a non json reply, e.g. a script download.
func (c *client) raw(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.c.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK || resp.Header().Get("Content-Type") != "application/x-yaml" {
		return nil, c.do(ctx, http.MethodGet, path, nil, nil)
	}
	return resp.Body(), nil
}
