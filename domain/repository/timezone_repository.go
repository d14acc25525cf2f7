package repository

import (
	"time"
)

// TimezoneService resolves the site timezone
type TimezoneService interface {
	// GetSiteLocation returns the site location, falling back through the
	// configured zone name, the configured GMT offset and UTC
	GetSiteLocation() *time.Location

	// ConvertToSiteTime converts a time to the site location
	ConvertToSiteTime(t time.Time) time.Time

	// FormatTimeForSite formats a time in the site location
	FormatTimeForSite(t time.Time, layout string) string

	// GetTimezoneInfo returns timezone information for display and logging
	GetTimezoneInfo() TimezoneInfo
}

// TimezoneInfo contains timezone information for display and logging
type TimezoneInfo struct {
	// Name is the zone name ("Asia/Tokyo") or a "UTC+5:30" style label for offset zones
	Name string

	// Offset is the UTC offset in the format "+09:00" or "-05:00"
	Offset string

	// OffsetSeconds is the offset from UTC in seconds
	OffsetSeconds int

	// IsDST indicates whether daylight saving time is currently active
	IsDST bool

	// DetectionMethod indicates how the timezone was determined
	// Values: "config", "gmt_offset", "fallback"
	DetectionMethod string
}
