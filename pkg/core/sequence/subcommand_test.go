package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObservedUnit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"fileids", "...fileids=482,0,3", 482},
		{"fileids among keywords", `visitSet=1;fileids=900,0,1;status=done`, 900},
		{"quoted fileids", `fileids="12,0x01,3"`, 12},
		{"fileids missing mask", "fileids=482,0", NoObservedUnit},
		{"fileids not a number", "fileids=abc,0,3", NoObservedUnit},
		{"visit", "exposure done visit=77 exptime=15", 77},
		{"visit is a word suffix", "pfsvisit=77", NoObservedUnit},
		{"visit without digits", "visit=next", NoObservedUnit},
		{"second visit token", "pfsvisit=1 visit=2", 2},
		{"no token", "no matching token", NoObservedUnit},
		{"empty", "", NoObservedUnit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeObservedUnit(tt.in))
		})
	}
}

func TestDecodeVisits(t *testing.T) {
	assert.Equal(t, []int64{1234}, DecodeVisits("1234"))
	assert.Equal(t, []int64{1234, 1235}, DecodeVisits("1234; 1235;"))
	assert.Nil(t, DecodeVisits(""))
	assert.Nil(t, DecodeVisits("fileids=1,0,1"))
	assert.Nil(t, DecodeVisits("12;x"))
}

func TestNewSubCommand(t *testing.T) {
	sub, err := NewSubCommand(2, "iic bias", DidFailPending, "")
	require.NoError(t, err)
	assert.Equal(t, StatusValid, sub.Status)
	assert.Equal(t, NoObservedUnit, sub.ObservedUnit)

	sub, err = NewSubCommand(2, "iic bias", DidFailSuccess, "fileids=10,0,1")
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, sub.Status)
	assert.EqualValues(t, 10, sub.ObservedUnit)

	sub, err = NewSubCommand(2, "iic bias", DidFailFailure, "ccd timeout")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, sub.Status)
	assert.Equal(t, "ccd timeout", sub.Anomalies)

	_, err = NewSubCommand(2, "iic bias", 7, "")
	require.Error(t, err)
}

func TestSubCommandMerge(t *testing.T) {
	t.Run("keeps observed unit", func(t *testing.T) {
		s := &SubCommand{Index: 0, Status: StatusActive, ObservedUnit: 5, ReturnStr: "fileids=5,0,1"}
		s.merge(&SubCommand{Index: 0, Status: StatusFinished, ObservedUnit: NoObservedUnit})
		assert.Equal(t, StatusFinished, s.Status)
		assert.EqualValues(t, 5, s.ObservedUnit)
		assert.Equal(t, "fileids=5,0,1", s.ReturnStr)
	})
	t.Run("active not demoted", func(t *testing.T) {
		s := &SubCommand{Status: StatusActive, ObservedUnit: NoObservedUnit}
		s.merge(&SubCommand{Status: StatusValid, ObservedUnit: NoObservedUnit})
		assert.Equal(t, StatusActive, s.Status)
	})
	t.Run("terminal never regresses", func(t *testing.T) {
		s := &SubCommand{Status: StatusFinished, ObservedUnit: 3}
		s.merge(&SubCommand{Status: StatusFailed, ObservedUnit: NoObservedUnit})
		assert.Equal(t, StatusFinished, s.Status)
	})
}
