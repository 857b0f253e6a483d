package engine

import "time"

// MarketClock gates the poll loop: cycles only run while the market is
// open and liquid.
type MarketClock interface {
	Open(t time.Time) bool
}

// SessionClock is a fixed weekday session window in one timezone, e.g.
// 09:00-15:30.
type SessionClock struct {
	OpenHM  string // "09:00"
	CloseHM string // "15:30"
	Loc     *time.Location
}

func (c SessionClock) Open(t time.Time) bool {
	loc := c.Loc
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	open, err1 := time.Parse("15:04", c.OpenHM)
	close, err2 := time.Parse("15:04", c.CloseHM)
	if err1 != nil || err2 != nil {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	openMin := open.Hour()*60 + open.Minute()
	closeMin := close.Hour()*60 + close.Minute()
	return minutes >= openMin && minutes < closeMin
}

// AlwaysOpen is a clock for paper runs and tests.
type AlwaysOpen struct{}

func (AlwaysOpen) Open(time.Time) bool { return true }
