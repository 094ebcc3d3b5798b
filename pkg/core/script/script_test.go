package script

import (
	"path/filepath"
	"testing"

	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	data := []byte(`
1:
  name: arcs
  comments: ""
  cmdStr: iic expose arc exptime=2 neon=1
0:
  name: biases
  comments: morning
  cmdStr: iic bias duplicate=3
  seqtype: biases
`)
	infos, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, sequence.Info{Name: "biases", Comments: "morning", CmdStr: "iic bias duplicate=3", SeqType: "biases"}, infos[0])
	assert.Equal(t, "iic expose arc exptime=2 neon=1", infos[1].CmdStr)
	assert.Empty(t, infos[1].SeqType)
}

func TestDecodeBadFormat(t *testing.T) {
	tests := map[string]string{
		"not a mapping": "- iic bias",
		"unknown field": "0:\n  cmdStr: iic bias\n  exptime: 3\n",
		"no cmdStr":     "0:\n  name: x\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(data))
			require.ErrorIs(t, err, code.ScriptFormatErr)
		})
	}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCRIPT_DIR", dir)

	infos := []sequence.Info{
		{Name: "a", CmdStr: "iic bias", SeqType: "biases"},
		{Name: "b", Comments: "c", CmdStr: "iic dark exptime=60"},
	}
	require.NoError(t, WriteFile("$SCRIPT_DIR/script.yaml", infos))
	assert.FileExists(t, filepath.Join(dir, "script.yaml"))

	got, err := ReadFile("${SCRIPT_DIR}/script.yaml")
	require.NoError(t, err)
	assert.Equal(t, infos, got)
}

func TestEncodeEmpty(t *testing.T) {
	_, err := Encode(nil)
	require.ErrorIs(t, err, code.ScriptEmptyErr)
}
