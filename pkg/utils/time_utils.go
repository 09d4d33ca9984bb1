package utils

import "time"

// Tashkent time location (UZT, +05:00)
var uzLoc = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Tashkent"); err == nil {
		return loc
	}
	return time.FixedZone("UZT", 5*3600)
}()

func NowUnixSeconds() int64 { return time.Now().Unix() }

// Merchant protocol timestamps are unix milliseconds.
func NowUnixMillis() int64 { return time.Now().UnixMilli() }

// Convert an epoch value in milliseconds to Tashkent time.
// Returns zero time if t<=0 to let callers decide how to render.
func FromUnixMillisUZ(t int64) time.Time {
	if t <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(t).In(uzLoc)
}

func FormatRFC3339UZ(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(uzLoc).Format(time.RFC3339)
}
