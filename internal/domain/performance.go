package domain

import "github.com/shopspring/decimal"

// PerformanceStats accumulates realized trade outcomes. Counters only ever
// grow; updates happen exclusively when a position closes.
type PerformanceStats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      decimal.Decimal
	WinRate       float64
	AvgWin        decimal.Decimal
	AvgLoss       decimal.Decimal
}

// RecordTrade folds one realized trade into the stats, maintaining running
// averages for wins and losses and the overall win rate.
func (s *PerformanceStats) RecordTrade(pnl decimal.Decimal, isWin bool) {
	s.TotalTrades++
	s.TotalPnL = s.TotalPnL.Add(pnl)

	if isWin {
		s.WinningTrades++
		wins := decimal.NewFromInt(int64(s.WinningTrades))
		s.AvgWin = s.AvgWin.Mul(wins.Sub(decimal.NewFromInt(1))).Add(pnl).Div(wins)
	} else {
		s.LosingTrades++
		losses := decimal.NewFromInt(int64(s.LosingTrades))
		s.AvgLoss = s.AvgLoss.Mul(losses.Sub(decimal.NewFromInt(1))).Add(pnl.Abs()).Div(losses)
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
}
