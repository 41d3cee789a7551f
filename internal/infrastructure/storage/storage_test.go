package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klinerelay/internal/domain/model"
)

func TestDecodeLatest(t *testing.T) {
	tp, err := EncodeTick(model.Tick{Symbol: "BTCUSDT", Close: 5, Timestamp: model.FromEpochMilli(1700000000000)})
	require.NoError(t, err)
	dp, err := EncodeDecision(model.Decision{Action: "SELL", Symbol: "BTCUSDT"})
	require.NoError(t, err)

	tick, d, err := DecodeLatest([]LatestRecord{
		{Kind: KindTick, Payload: tp},
		{Kind: "other", Payload: "ignored"},
		{Kind: KindDecision, Payload: dp},
	})
	require.NoError(t, err)
	require.NotNil(t, tick)
	require.NotNil(t, d)
	assert.Equal(t, 5.0, tick.Close)
	assert.Equal(t, "SELL", d.Action)
}

func TestDecodeLatestEmptyAndBroken(t *testing.T) {
	tick, d, err := DecodeLatest(nil)
	require.NoError(t, err)
	assert.Nil(t, tick)
	assert.Nil(t, d)

	_, _, err = DecodeLatest([]LatestRecord{{Kind: KindTick, Payload: "{"}})
	assert.Error(t, err)
}
