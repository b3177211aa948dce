package domain

import "time"

// Quote is a snapshot of a symbol's market state, refreshed from the
// data feed. It is never persisted; staleness is judged by AsOf.
type Quote struct {
	Symbol    string
	Name      string
	Price     int64 // cents, latest trade price
	PrevClose int64 // cents, previous session close
	LimitUp   int64 // cents, maximum allowed price today
	LimitDown int64 // cents, minimum allowed price today
	Suspended bool
	AsOf      time.Time
}

// AtLimitUp reports whether the price has reached the upper band,
// where only sells may execute.
func (q *Quote) AtLimitUp() bool {
	return q.LimitUp > 0 && q.Price >= q.LimitUp
}

// AtLimitDown reports whether the price has reached the lower band,
// where only buys may execute.
func (q *Quote) AtLimitDown() bool {
	return q.LimitDown > 0 && q.Price <= q.LimitDown
}

// InBand reports whether a limit price lies within today's band,
// bounds inclusive. A missing band (zero limits) accepts any price.
func (q *Quote) InBand(price int64) bool {
	if q.LimitUp == 0 && q.LimitDown == 0 {
		return true
	}
	return price >= q.LimitDown && price <= q.LimitUp
}
