package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klinerelay/internal/domain/model"
)

func strp(s string) *string { return &s }

func f64p(v float64) *float64 { return &v }

func TestProjectDecisionHoldWithoutTrades(t *testing.T) {
	tick := model.Tick{Symbol: "BTCUSDT", Close: 50000}
	resp := model.AgentResponse{
		Account: &model.AccountState{Balance: 1000, Equity: 1000},
		Debug:   model.StrategyDebug{StrategyAction: strp("HOLD")},
	}

	d := ProjectDecision(resp, tick, 1000)

	assert.Equal(t, "HOLD", d.Action)
	assert.Equal(t, "BTCUSDT", d.Symbol)
	require.NotNil(t, d.Price)
	assert.Equal(t, 50000.0, *d.Price)
	assert.Nil(t, d.Quantity)
	assert.Equal(t, 1000.0, d.Balance)
	assert.Equal(t, 1000.0, d.Equity)
	require.NotNil(t, d.RoiPct)
	assert.Equal(t, 0.0, *d.RoiPct)
}

func TestProjectDecisionLastTradeWins(t *testing.T) {
	tick := model.Tick{Symbol: "BTCUSDT", Close: 50000}
	resp := model.AgentResponse{
		Trades: []model.TradeEvent{
			{Symbol: "BTCUSDT", Volume: 1, Price: 49000, Reason: strp("entry")},
			{Symbol: "ETHUSDT", Volume: 0.5, Price: 3000, Reason: strp("tp_hit")},
		},
		Account: &model.AccountState{Balance: 1050, Equity: 1060},
		Debug:   model.StrategyDebug{StrategyAction: strp("SELL"), StrategyReason: strp("signal")},
	}

	d := ProjectDecision(resp, tick, 1000)

	assert.Equal(t, "SELL", d.Action)
	assert.Equal(t, "ETHUSDT", d.Symbol)
	require.NotNil(t, d.Quantity)
	assert.Equal(t, 0.5, *d.Quantity)
	assert.Equal(t, 3000.0, *d.Price)
	require.NotNil(t, d.Reason)
	assert.Equal(t, "tp_hit", *d.Reason)
	require.NotNil(t, d.RoiPct)
	assert.InDelta(t, 6.0, *d.RoiPct, 1e-9)
}

func TestProjectDecisionTradeWithoutReasonKeepsStrategyReason(t *testing.T) {
	resp := model.AgentResponse{
		Trades: []model.TradeEvent{{Symbol: "BTCUSDT", Volume: 2, Price: 100}},
		Debug:  model.StrategyDebug{StrategyReason: strp("breakout")},
	}

	d := ProjectDecision(resp, model.Tick{Symbol: "BTCUSDT", Close: 101}, 0)

	assert.Equal(t, model.ActionHold, d.Action)
	require.NotNil(t, d.Reason)
	assert.Equal(t, "breakout", *d.Reason)
}

func TestProjectDecisionWithoutAccount(t *testing.T) {
	d := ProjectDecision(model.AgentResponse{}, model.Tick{Symbol: "BTCUSDT", Close: 10}, 500)

	assert.Equal(t, model.ActionHold, d.Action)
	assert.Nil(t, d.Reason)
	assert.Equal(t, 0.0, d.Balance)
	assert.Equal(t, 0.0, d.Equity)
	assert.Nil(t, d.RealizedPnl)
	assert.Nil(t, d.PositionSide)
	assert.Nil(t, d.PositionSize)
	assert.Nil(t, d.AvgEntryPrice)
	require.NotNil(t, d.RoiPct)
	assert.Equal(t, -100.0, *d.RoiPct)
}

func TestProjectDecisionCopiesPosition(t *testing.T) {
	open := model.FromEpochMilli(1700000000000)
	acc := &model.AccountState{
		Balance:          900,
		Equity:           950,
		PositionSide:     strp("LONG"),
		PositionSize:     0.1,
		AvgEntryPrice:    48000,
		RealizedPnl:      -12.5,
		PositionOpenTime: &open,
		TakeProfitPrice:  f64p(52000),
		StopLossPrice:    f64p(46000),
		PositionNotional: f64p(4800),
	}

	d := ProjectDecision(model.AgentResponse{Account: acc}, model.Tick{Symbol: "BTCUSDT"}, 1000)

	require.NotNil(t, d.RealizedPnl)
	assert.Equal(t, -12.5, *d.RealizedPnl)
	assert.Equal(t, "LONG", *d.PositionSide)
	assert.Equal(t, 0.1, *d.PositionSize)
	assert.Equal(t, 48000.0, *d.AvgEntryPrice)
	assert.Equal(t, 52000.0, *d.TakeProfitPrice)
	assert.Equal(t, 46000.0, *d.StopLossPrice)
	assert.Equal(t, 4800.0, *d.PositionNotional)
	assert.True(t, d.PositionOpenTime.Equal(open.Time))

	// the decision must not alias the account
	*d.TakeProfitPrice = 1
	assert.Equal(t, 52000.0, *acc.TakeProfitPrice)
}

func TestProjectDecisionIsDeterministic(t *testing.T) {
	resp := model.AgentResponse{
		Trades:  []model.TradeEvent{{Symbol: "BTCUSDT", Volume: 0.3, Price: 42000}},
		Account: &model.AccountState{Balance: 1200, Equity: 1234.5, RealizedPnl: 34.5},
		Debug:   model.StrategyDebug{StrategyAction: strp("BUY")},
	}
	tick := model.Tick{Symbol: "BTCUSDT", Close: 42010}

	assert.Equal(t, ProjectDecision(resp, tick, 1000), ProjectDecision(resp, tick, 1000))
}

func TestROIPct(t *testing.T) {
	assert.Nil(t, ROIPct(1100, 0))
	assert.Nil(t, ROIPct(1100, -5))

	got := ROIPct(1234.5, 1000)
	require.NotNil(t, got)
	assert.Equal(t, (1234.5-1000.0)/1000.0*100, *got)
}
