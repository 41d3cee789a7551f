package service

// Trend 价格相对上一次的方向：+1 上涨，-1 下跌，0 持平
func Trend(curr, prev float64) int {
	switch {
	case curr > prev:
		return +1
	case curr < prev:
		return -1
	default:
		return 0
	}
}

// Band 按阈值分级：-1 red, 0 yellow, +1 green (pure decision)
func Band(v, threshold float64) int {
	if v >= threshold {
		return +1
	}
	if v <= -threshold {
		return -1
	}
	return 0
}
