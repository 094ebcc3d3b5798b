// Package script reads and writes queue scripts: a YAML mapping from queue
// position to the sequence info of that row.
package script

import (
	"os"
	"sort"

	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"gopkg.in/yaml.v2"
)

func Encode(infos []sequence.Info) ([]byte, error) {
	if len(infos) == 0 {
		return nil, code.ScriptEmptyErr
	}
	rows := make(map[int]sequence.Info, len(infos))
	for i, info := range infos {
		rows[i] = info
	}
	data, err := yaml.Marshal(rows)
	if err != nil {
		return nil, code.ScriptFormatErr.WithErr(err)
	}
	return data, nil
}

// Decode returns the rows ordered by their position key.
func Decode(data []byte) ([]sequence.Info, error) {
	rows := make(map[int]sequence.Info)
	if err := yaml.UnmarshalStrict(data, &rows); err != nil {
		return nil, code.ScriptFormatErr.WithErr(err)
	}

	keys := make([]int, 0, len(rows))
	for k, row := range rows {
		if row.CmdStr == "" {
			return nil, code.ScriptFormatErr.WithMsgf("row %d has no cmdStr", k)
		}
		keys = append(keys, k)
	}
	sort.Ints(keys)

	infos := make([]sequence.Info, 0, len(keys))
	for _, k := range keys {
		infos = append(infos, rows[k])
	}
	return infos, nil
}

// ReadFile expands environment variables in path before reading it.
func ReadFile(path string) ([]sequence.Info, error) {
	data, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func WriteFile(path string, infos []sequence.Info) error {
	data, err := Encode(infos)
	if err != nil {
		return err
	}
	return os.WriteFile(os.ExpandEnv(path), data, 0o644)
}
