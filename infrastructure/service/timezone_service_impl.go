package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
)

// Detection methods reported in repository.TimezoneInfo.DetectionMethod
const (
	// DetectionConfig means site.timezone named a loadable IANA zone
	DetectionConfig = "config"
	// DetectionGMTOffset means a fixed zone was built from site.gmt_offset
	DetectionGMTOffset = "gmt_offset"
	// DetectionFallback means neither was usable and UTC is in effect
	DetectionFallback = "fallback"
)

// TimezoneServiceImpl implements the TimezoneService interface
type TimezoneServiceImpl struct {
	site   *config.SiteConfig
	logger domain.Logger
	now    func() time.Time

	once     sync.Once
	location *time.Location
	method   string
}

// NewTimezoneServiceImpl creates a new instance of TimezoneServiceImpl
func NewTimezoneServiceImpl(site *config.SiteConfig, logger domain.Logger) *TimezoneServiceImpl {
	if site == nil {
		site = &config.SiteConfig{}
	}
	return &TimezoneServiceImpl{
		site:   site,
		logger: logger,
		now:    time.Now,
	}
}

var _ repository.TimezoneService = (*TimezoneServiceImpl)(nil)

// GetSiteLocation returns the resolved site location
func (s *TimezoneServiceImpl) GetSiteLocation() *time.Location {
	s.once.Do(s.resolve)
	return s.location
}

// ConvertToSiteTime converts t to the site location
func (s *TimezoneServiceImpl) ConvertToSiteTime(t time.Time) time.Time {
	return t.In(s.GetSiteLocation())
}

// FormatTimeForSite formats t in the site location
func (s *TimezoneServiceImpl) FormatTimeForSite(t time.Time, layout string) string {
	return s.ConvertToSiteTime(t).Format(layout)
}

// GetTimezoneInfo returns timezone information for display and logging
func (s *TimezoneServiceImpl) GetTimezoneInfo() repository.TimezoneInfo {
	loc := s.GetSiteLocation()

	now := s.now().In(loc)
	_, offset := now.Zone()

	return repository.TimezoneInfo{
		Name:            loc.String(),
		Offset:          formatOffset(offset, true),
		OffsetSeconds:   offset,
		IsDST:           now.IsDST(),
		DetectionMethod: s.method,
	}
}

// resolve walks the configured zone name, then the GMT offset, then UTC
func (s *TimezoneServiceImpl) resolve() {
	ctx := context.Background()

	if s.site.Timezone != "" {
		loc, err := time.LoadLocation(s.site.Timezone)
		if err == nil {
			s.location, s.method = loc, DetectionConfig
			return
		}
		s.logger.Warn(ctx, "Configured timezone is invalid, falling back",
			domain.NewField("timezone", s.site.Timezone),
			domain.NewField("error", domain.ErrTimezoneParse(s.site.Timezone, err).Error()))
	}

	if s.site.GMTOffset != 0 {
		seconds := int(math.Round(s.site.GMTOffset * 3600))
		s.location = time.FixedZone(OffsetLabel(seconds), seconds)
		s.method = DetectionGMTOffset
		return
	}

	s.location, s.method = time.UTC, DetectionFallback
}

// OffsetLabel names a fixed offset zone the way WordPress does:
// "UTC+9", "UTC+5:30", "UTC-3:30".
func OffsetLabel(seconds int) string {
	if seconds == 0 {
		return "UTC"
	}
	return "UTC" + formatOffset(seconds, false)
}

// formatOffset renders an offset as "+09:00" when padded, else "+9" / "+5:30"
func formatOffset(seconds int, padded bool) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if padded {
		return fmt.Sprintf("%s%02d:%02d", sign, hours, minutes)
	}
	if minutes == 0 {
		return fmt.Sprintf("%s%d", sign, hours)
	}
	return fmt.Sprintf("%s%d:%02d", sign, hours, minutes)
}
