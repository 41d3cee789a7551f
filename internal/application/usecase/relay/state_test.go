package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klinerelay/internal/domain/model"
)

func TestStateEmpty(t *testing.T) {
	st := NewState()

	_, ok := st.Tick()
	assert.False(t, ok)
	_, ok = st.Decision()
	assert.False(t, ok)
}

func TestStateLatestWins(t *testing.T) {
	st := NewState()
	st.SetTick(model.Tick{Symbol: "BTCUSDT", Close: 1})
	st.SetTick(model.Tick{Symbol: "BTCUSDT", Close: 2})

	got, ok := st.Tick()
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Close)

	st.SetDecision(model.Decision{Action: "BUY"})
	st.SetDecision(model.Decision{Action: "SELL"})
	d, ok := st.Decision()
	require.True(t, ok)
	assert.Equal(t, "SELL", d.Action)
}

func TestStateSetDecisionIfNewer(t *testing.T) {
	st := NewState()

	assert.True(t, st.SetDecisionIfNewer(5, model.Decision{Action: "BUY"}))
	assert.False(t, st.SetDecisionIfNewer(3, model.Decision{Action: "SELL"}))

	d, _ := st.Decision()
	assert.Equal(t, "BUY", d.Action)

	assert.True(t, st.SetDecisionIfNewer(6, model.Decision{Action: "HOLD"}))
	d, _ = st.Decision()
	assert.Equal(t, "HOLD", d.Action)
}

func TestStateConcurrentAccess(t *testing.T) {
	st := NewState()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			v := float64(i)
			st.SetTick(model.Tick{Symbol: "BTCUSDT", Open: v, Close: v})
			st.SetDecisionIfNewer(uint64(i), model.Decision{Symbol: "BTCUSDT", Balance: v, Equity: v})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if tk, ok := st.Tick(); ok {
					assert.Equal(t, tk.Open, tk.Close)
				}
				if d, ok := st.Decision(); ok {
					assert.Equal(t, d.Balance, d.Equity)
				}
			}
		}()
	}
	wg.Wait()

	tk, _ := st.Tick()
	assert.Equal(t, 1000.0, tk.Close)
}
