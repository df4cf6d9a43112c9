package analytics

import (
	"context"
	"strings"

	"github.com/leadtracker/crm/internal/common"
)

type Granularity string

const (
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
	Hourly  Granularity = "hourly"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Daily, Monthly, Hourly:
		return g, nil
	default:
		return "", common.Invalid("unknown period %q", s)
	}
}

// Series returns the global record creation counts for g, zero-filled.
func (s *Service) Series(ctx context.Context, g Granularity) ([]Bucket, error) {
	now := s.now()
	cs, err := s.repo.ClientsSince(ctx, 0, windowStart(now))
	if err != nil {
		return nil, err
	}
	ts := createdAt(cs)
	switch g {
	case Daily:
		return DailyBuckets(ts, now, dailyWindow), nil
	case Monthly:
		return MonthlyBuckets(ts, now, monthlyWindow), nil
	case Hourly:
		return HourlyBuckets(ts, now, hourlyWindow), nil
	default:
		return nil, common.Invalid("unknown period %q", g)
	}
}
