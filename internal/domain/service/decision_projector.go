package service

import "klinerelay/internal/domain/model"

// ProjectDecision 根据代理响应、触发的 Tick 与初始资金推导 UI 决策
// 纯函数：相同输入总是得到相同输出，不修改任何入参
//
// 优先级：默认值 < debug 中的策略信号 < 最后一笔成交
func ProjectDecision(resp model.AgentResponse, tick model.Tick, initialBalance float64) model.Decision {
	d := model.Decision{
		Action: model.ActionHold,
		Symbol: tick.Symbol,
		Price:  ptr(tick.Close),
	}

	if resp.Debug.StrategyAction != nil {
		d.Action = *resp.Debug.StrategyAction
	}
	if resp.Debug.StrategyReason != nil {
		d.Reason = ptr(*resp.Debug.StrategyReason)
	}

	if n := len(resp.Trades); n > 0 {
		last := resp.Trades[n-1]
		d.Symbol = last.Symbol
		d.Quantity = ptr(last.Volume)
		d.Price = ptr(last.Price)
		if last.Reason != nil {
			d.Reason = ptr(*last.Reason)
		}
	}

	acc := resp.Account
	if acc != nil {
		d.Balance = acc.Balance
		d.Equity = acc.Equity
		d.RealizedPnl = ptr(acc.RealizedPnl)
	} else {
		d.Equity = d.Balance
	}

	d.RoiPct = ROIPct(d.Equity, initialBalance)

	if acc != nil {
		d.PositionSide = clonePtr(acc.PositionSide)
		d.PositionSize = ptr(acc.PositionSize)
		d.PositionOpenTime = clonePtr(acc.PositionOpenTime)
		d.TakeProfitPrice = clonePtr(acc.TakeProfitPrice)
		d.StopLossPrice = clonePtr(acc.StopLossPrice)
		d.PositionNotional = clonePtr(acc.PositionNotional)
		d.AvgEntryPrice = ptr(acc.AvgEntryPrice)
	}
	return d
}

// ROIPct 权益相对初始资金的收益率（百分比），初始资金非正时返回 nil
func ROIPct(equity, initialBalance float64) *float64 {
	if initialBalance <= 0 {
		return nil
	}
	return ptr((equity - initialBalance) / initialBalance * 100.0)
}

func ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return ptr(*p)
}
