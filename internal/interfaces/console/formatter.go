package console

import (
	"fmt"
	"strings"

	"klinerelay/internal/domain/model"
	dsvc "klinerelay/internal/domain/service"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

// roiBand ROI 超过该百分比才着色
const roiBand = 0.01

func colorize(s, c string) string { return c + s + ansiReset }

func colorFor(dir int) string {
	switch dir {
	case +1:
		return ansiGreen
	case -1:
		return ansiRed
	default:
		return ansiYellow
	}
}

// RenderLine 渲染一行实时状态：最新 K 线 + 最新决策
func RenderLine(tick *model.Tick, prevClose float64, d *model.Decision) string {
	var sb strings.Builder
	sb.WriteString("\r")
	sb.WriteString(colorize("[KLINE] ", ansiDim))

	if tick == nil {
		sb.WriteString("--")
	} else {
		dir := 0
		if prevClose > 0 {
			dir = dsvc.Trend(tick.Close, prevClose)
		}
		sb.WriteString(tick.Symbol)
		sb.WriteString(" ")
		sb.WriteString(colorize(fmt.Sprintf("C:%.2f", tick.Close), colorFor(dir)))
		sb.WriteString(fmt.Sprintf(" H:%.2f L:%.2f V:%.4f", tick.High, tick.Low, tick.Volume))
	}

	sb.WriteString(colorize("  ||  ", ansiDim))

	if d == nil {
		sb.WriteString("decision=--")
	} else {
		sb.WriteString(d.Action)
		if d.Quantity != nil {
			sb.WriteString(fmt.Sprintf(" qty=%g", *d.Quantity))
		}
		if d.Price != nil {
			sb.WriteString(fmt.Sprintf(" @%.2f", *d.Price))
		}
		sb.WriteString(fmt.Sprintf(" eq=%.2f", d.Equity))
		if d.RoiPct != nil {
			roi := fmt.Sprintf(" roi=%+.2f%%", *d.RoiPct)
			sb.WriteString(colorize(roi, colorFor(dsvc.Band(*d.RoiPct, roiBand))))
		}
		if d.PositionSide != nil && *d.PositionSide != "" {
			sb.WriteString(" pos=" + *d.PositionSide)
		}
	}

	sb.WriteString(ansiClearEOL)
	return sb.String()
}
