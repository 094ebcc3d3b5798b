package console

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	r "github.com/redis/go-redis/v9"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/common/constant"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/scienceol/seqpanel/pkg/utils"
)

// clipboard keeps copied rows per operator, in redis when available so a
// console restart does not lose them.
type clipboard struct {
	console string
	rClient *r.Client

	mu  sync.Mutex
	mem map[string][]sequence.Info
}

func newClipboard(console string, rClient *r.Client) *clipboard {
	return &clipboard{
		console: console,
		rClient: rClient,
		mem:     make(map[string][]sequence.Info),
	}
}

func (c *clipboard) Set(ctx context.Context, operator string, infos []sequence.Info) error {
	if c.rClient == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.mem[operator] = infos
		return nil
	}
	data, err := json.Marshal(infos)
	if err != nil {
		return err
	}
	return c.rClient.Set(ctx, utils.ClipboardName(c.console, operator), data, constant.ClipboardTTL).Err()
}

func (c *clipboard) Get(ctx context.Context, operator string) ([]sequence.Info, error) {
	if c.rClient == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		infos, ok := c.mem[operator]
		if !ok || len(infos) == 0 {
			return nil, code.ClipboardEmptyErr
		}
		return infos, nil
	}

	data, err := c.rClient.Get(ctx, utils.ClipboardName(c.console, operator)).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, code.ClipboardEmptyErr
	}
	if err != nil {
		return nil, err
	}
	infos := make([]sequence.Info, 0)
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, code.ClipboardEmptyErr
	}
	return infos, nil
}
