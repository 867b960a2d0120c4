// Package gametime models the abstract in-fiction clock.
package gametime

// Band identifies a time-of-day band.
type Band string

const (
	// BandDawn is the first band of a day.
	BandDawn Band = "dawn"
	// BandMorning follows dawn.
	BandMorning Band = "morning"
	// BandAfternoon follows morning.
	BandAfternoon Band = "afternoon"
	// BandEvening follows afternoon.
	BandEvening Band = "evening"
	// BandNight is the last band of a day.
	BandNight Band = "night"
)

// bandOrder defines in-fiction ordering within a day.
var bandOrder = []Band{BandDawn, BandMorning, BandAfternoon, BandEvening, BandNight}

// IsValid reports whether the band is one of the supported values.
func (b Band) IsValid() bool {
	for _, known := range bandOrder {
		if b == known {
			return true
		}
	}
	return false
}

// Time is an in-fiction clock value. It is immutable once attached to a
// turn; advancement produces a new value with a strictly larger Stamp.
type Time struct {
	// Day is the in-fiction day counter, starting at 1.
	Day int `json:"day"`
	// Band is the time-of-day band within Day.
	Band Band `json:"band"`
	// Stamp is a monotonic counter ordering Time values across a session.
	// It carries no wall-clock meaning.
	Stamp uint64 `json:"stamp"`
}

// Start returns the first clock value of a session.
func Start() Time {
	return Time{Day: 1, Band: BandDawn, Stamp: 1}
}

// Advance returns the clock moved forward one band, rolling into the
// next day after night. The stamp always increases by one.
func (t Time) Advance() Time {
	next := Time{Day: t.Day, Stamp: t.Stamp + 1}
	idx := bandIndex(t.Band)
	if idx < 0 || idx == len(bandOrder)-1 {
		next.Day = t.Day + 1
		next.Band = BandDawn
		return next
	}
	next.Band = bandOrder[idx+1]
	return next
}

// Before reports whether t is strictly earlier than other.
func (t Time) Before(other Time) bool {
	return t.Stamp < other.Stamp
}

func bandIndex(b Band) int {
	for i, known := range bandOrder {
		if b == known {
			return i
		}
	}
	return -1
}
