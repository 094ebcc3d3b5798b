package template

import (
	"testing"

	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		seqType string
		values  map[string]string
		want    string
	}{
		{"masterBiases", nil, "iic masterBiases duplicate=15"},
		{"masterDarks", map[string]string{"cam": "b1,r1"}, "iic masterDarks exptime=300 duplicate=15 cam=b1,r1"},
		{"ditheredFlats", nil, "iic ditheredFlats pixelRange=-6,6,0.3"},
		{"ditheredFlats", map[string]string{"switchOff": "True", "halogen": "20"}, "iic ditheredFlats pixelRange=-6,6,0.3 halogen=20 switchOff"},
		{"scienceArc", map[string]string{"neon": "3", "argon": " "}, "iic scienceArc exptime=15.0 neon=3"},
		{"biases", map[string]string{"duplicate": "3"}, "iic bias duplicate=3"},
		{"darks", map[string]string{"exptime": ""}, "iic dark"},
		{"detThroughFocus", map[string]string{"tilt": "1,2,3"}, "iic detector throughfocus position=0,300,11 tilt=1,2,3"},
	}
	for _, tt := range tests {
		t.Run(tt.seqType, func(t *testing.T) {
			tpl, err := Get(tt.seqType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tpl.Build(tt.values))
		})
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("previous")
	require.ErrorIs(t, err, code.TemplateNotFoundErr)
}

func TestInfo(t *testing.T) {
	tpl, err := Get("biases")
	require.NoError(t, err)
	info, err := tpl.Info(" morning ", "", "", map[string]string{"duplicate": "5"})
	require.NoError(t, err)
	assert.Equal(t, "morning", info.Name)
	assert.Equal(t, "iic bias duplicate=5", info.CmdStr)
	assert.Equal(t, "biases", info.SeqType)

	cmd, err := Get(Command)
	require.NoError(t, err)
	info, err = cmd.Info(" focus ", "after fill ", " enu slit move ", nil)
	require.NoError(t, err)
	assert.Equal(t, "focus", info.Name)
	assert.Equal(t, "after fill", info.Comments)
	assert.Equal(t, "enu slit move", info.CmdStr)
	assert.Equal(t, `enu slit move name="focus" comments="after fill"`, sequence.New(info).FullCommand())

	_, err = cmd.Info("", "", "iic", nil)
	require.ErrorIs(t, err, code.MalformedCommandErr)
}

func TestList(t *testing.T) {
	list := List()
	require.Len(t, list, 16)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].SeqType, list[i].SeqType)
	}
}
