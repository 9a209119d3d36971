// Package analytics shapes the execution log into the reports behind the
// automation dashboard: overview counters, trends, histograms, transfer
// patterns and per-rule health, plus optimization recommendations.
package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"crmflow_backend/internal/automation/repository"
)

// Stats is the aggregation slice of the repository the service consumes.
// Windowed queries take a half-open [since, until) interval.
type Stats interface {
	Totals(ctx context.Context, companyID uuid.UUID, since, until time.Time) (repository.ExecutionTotals, error)
	MostActiveRule(ctx context.Context, companyID uuid.UUID, since, until time.Time) (repository.RuleActivity, error)
	CountActiveRules(ctx context.Context, companyID uuid.UUID) (int, error)
	DailyTrend(ctx context.Context, companyID uuid.UUID, since, until time.Time) ([]repository.DailyCount, error)
	HourlyHistogram(ctx context.Context, companyID uuid.UUID, since, until time.Time) ([]repository.HourlyCount, error)
	TransferPatterns(ctx context.Context, companyID uuid.UUID, since, until time.Time) ([]repository.TransferPattern, error)
	PerRule(ctx context.Context, companyID uuid.UUID, since, until time.Time) ([]repository.RuleStats, error)
}

// ExecutionLog is the listing slice of the execution log repository.
type ExecutionLog interface {
	ListRecent(ctx context.Context, companyID uuid.UUID, limit int) ([]repository.RecentExecution, error)
}

// Service computes analytics reports.
type Service struct {
	stats Stats
	log   ExecutionLog
	now   func() time.Time
}

// New creates the analytics service.
func New(stats Stats, log ExecutionLog) *Service {
	return &Service{stats: stats, log: log, now: time.Now}
}

// Range optionally bounds a report. A zero Start falls back to the report's
// default trailing window; a zero End means now. End is exclusive. Buckets
// are UTC days and hours.
type Range struct {
	Start time.Time
	End   time.Time
}

// window resolves the range against a default trailing window in days.
func (s *Service) window(r Range, defaultDays int) (since, until time.Time) {
	until = r.End
	if until.IsZero() {
		until = s.now()
	}
	since = r.Start
	if since.IsZero() {
		since = until.AddDate(0, 0, -defaultDays)
	}
	return since, until
}

// Default report windows.
const (
	overviewWindowDays  = 30
	trendWindowDays     = 30
	histogramWindowDays = 7
	patternWindowDays   = 30
	// Recommendations look at the last week of executions.
	recommendationWindowDays = 7
	// A rule is flagged unreliable above this failure rate.
	failureRateThreshold = 0.30
	// Failure rate is only meaningful with at least this many executions.
	minExecutionsForRate = 5
)

// TopRule is the busiest rule of the overview window.
type TopRule struct {
	AutomationID uuid.UUID `json:"automationId"`
	RuleName     string    `json:"ruleName"`
	Executions   int       `json:"executions"`
}

// Overview is the dashboard headline block. SuccessRate is a percentage
// rounded to one decimal.
type Overview struct {
	TotalExecutions int     `json:"totalExecutions"`
	Successful      int     `json:"successful"`
	Failed          int     `json:"failed"`
	SuccessRate     float64 `json:"successRate"`
	// AvgExecutionMs averages the executionTimeMs recorded per attempt.
	AvgExecutionMs   float64  `json:"avgExecutionMs"`
	MostActiveRule   *TopRule `json:"mostActiveRule,omitempty"`
	ActiveRules      int      `json:"activeRules"`
	AutomatedChanges int      `json:"automatedChanges"`
	// ManualChanges is always zero: manual status changes happen in the
	// surrounding CRM and never reach this service's log.
	ManualChanges int `json:"manualChanges"`
}

// Overview aggregates the tenant's last 30 days, or the given range. The
// four queries run concurrently.
func (s *Service) Overview(ctx context.Context, companyID uuid.UUID, r Range) (Overview, error) {
	since, until := s.window(r, overviewWindowDays)

	var (
		totals      repository.ExecutionTotals
		busiest     repository.RuleActivity
		activeRules int
		patterns    []repository.TransferPattern
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.stats.Totals(gctx, companyID, since, until)
		return err
	})
	g.Go(func() error {
		var err error
		busiest, err = s.stats.MostActiveRule(gctx, companyID, since, until)
		return err
	})
	g.Go(func() error {
		var err error
		activeRules, err = s.stats.CountActiveRules(gctx, companyID)
		return err
	})
	g.Go(func() error {
		var err error
		patterns, err = s.stats.TransferPatterns(gctx, companyID, since, until)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	automated := 0
	for _, p := range patterns {
		automated += p.Count
	}

	ov := Overview{
		TotalExecutions:  totals.Total,
		Successful:       totals.Succeeded,
		Failed:           totals.Failed,
		SuccessRate:      percent(totals.Succeeded, totals.Total),
		AvgExecutionMs:   math.Round(totals.AvgDurationMs*10) / 10,
		ActiveRules:      activeRules,
		AutomatedChanges: automated,
		ManualChanges:    0,
	}
	if busiest.Count > 0 {
		ov.MostActiveRule = &TopRule{
			AutomationID: busiest.AutomationID,
			RuleName:     busiest.RuleName,
			Executions:   busiest.Count,
		}
	}
	return ov, nil
}

// percent returns part/total as a percentage rounded to one decimal, zero
// when total is zero.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

// TrendPoint is one day of execution volume. Days with no executions are
// present with zeros.
type TrendPoint struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// DailyTrend returns one point per UTC day, oldest first. An explicit range
// wins over days; days with no executions are zero-filled.
func (s *Service) DailyTrend(ctx context.Context, companyID uuid.UUID, days int, r Range) ([]TrendPoint, error) {
	if days <= 0 || days > 365 {
		days = trendWindowDays
	}

	until := r.End
	if until.IsZero() {
		until = s.now()
	}
	until = until.UTC()

	since := r.Start
	if since.IsZero() {
		since = until.AddDate(0, 0, -(days - 1))
	}
	since = since.UTC().Truncate(24 * time.Hour)

	lastDay := until.Add(-time.Nanosecond).Truncate(24 * time.Hour)
	span := int(lastDay.Sub(since)/(24*time.Hour)) + 1
	if span < 1 {
		span = 1
	}
	if span > 366 {
		span = 366
	}

	counts, err := s.stats.DailyTrend(ctx, companyID, since, until)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]repository.DailyCount, len(counts))
	for _, c := range counts {
		byDay[c.Day.UTC().Format("2006-01-02")] = c
	}

	points := make([]TrendPoint, 0, span)
	for d := 0; d < span; d++ {
		day := since.AddDate(0, 0, d).Format("2006-01-02")
		c := byDay[day]
		points = append(points, TrendPoint{
			Date:      day,
			Total:     c.Total,
			Succeeded: c.Succeeded,
			Failed:    c.Failed,
		})
	}

	return points, nil
}

// HourBucket is one hour-of-day bucket of the activity histogram.
type HourBucket struct {
	Hour        int     `json:"hour"`
	Count       int     `json:"count"`
	SuccessRate float64 `json:"successRate"`
}

// HourlyHistogram returns all 24 UTC hour buckets over the last week, or
// the given range; hours with no executions are included with zero counts.
func (s *Service) HourlyHistogram(ctx context.Context, companyID uuid.UUID, r Range) ([]HourBucket, error) {
	since, until := s.window(r, histogramWindowDays)

	counts, err := s.stats.HourlyHistogram(ctx, companyID, since, until)
	if err != nil {
		return nil, err
	}

	buckets := make([]HourBucket, 24)
	for i := range buckets {
		buckets[i].Hour = i
	}
	for _, c := range counts {
		if c.Hour >= 0 && c.Hour < 24 {
			buckets[c.Hour].Count = c.Count
			buckets[c.Hour].SuccessRate = percent(c.Succeeded, c.Count)
		}
	}

	return buckets, nil
}

// TransferPattern is one status transition with its frequency. Every logged
// transition is automation-driven; manualChanges is a placeholder for the
// surrounding CRM's manual moves, which never reach this log.
type TransferPattern struct {
	FromStatus       string `json:"fromStatus"`
	ToStatus         string `json:"toStatus"`
	Count            int    `json:"count"`
	AutomationDriven int    `json:"automationDriven"`
	ManualChanges    int    `json:"manualChanges"`
}

// TransferPatterns returns the status transitions automations applied over
// the last 30 days, or the given range, most frequent first.
func (s *Service) TransferPatterns(ctx context.Context, companyID uuid.UUID, r Range) ([]TransferPattern, error) {
	since, until := s.window(r, patternWindowDays)

	patterns, err := s.stats.TransferPatterns(ctx, companyID, since, until)
	if err != nil {
		return nil, err
	}

	result := make([]TransferPattern, 0, len(patterns))
	for _, p := range patterns {
		result = append(result, TransferPattern{
			FromStatus:       p.FromStatus,
			ToStatus:         p.ToStatus,
			Count:            p.Count,
			AutomationDriven: p.Count,
			ManualChanges:    0,
		})
	}

	return result, nil
}

// RuleReport is one rule's execution health. SuccessRate is a percentage
// rounded to one decimal, like the overview.
type RuleReport struct {
	AutomationID uuid.UUID  `json:"automationId"`
	RuleName     string     `json:"ruleName"`
	Active       bool       `json:"active"`
	Total        int        `json:"total"`
	Succeeded    int        `json:"succeeded"`
	Failed       int        `json:"failed"`
	SuccessRate  float64    `json:"successRate"`
	AvgTimeMs    float64    `json:"avgTimeMs"`
	LastExecuted *time.Time `json:"lastExecuted,omitempty"`
}

// PerRule returns every live rule's stats over the window, busiest first.
// An explicit range wins over days; rules that never executed appear with
// zeros.
func (s *Service) PerRule(ctx context.Context, companyID uuid.UUID, days int, r Range) ([]RuleReport, error) {
	if days <= 0 || days > 365 {
		days = overviewWindowDays
	}
	since, until := s.window(r, days)

	stats, err := s.stats.PerRule(ctx, companyID, since, until)
	if err != nil {
		return nil, err
	}

	reports := make([]RuleReport, 0, len(stats))
	for _, st := range stats {
		reports = append(reports, RuleReport{
			AutomationID: st.AutomationID,
			RuleName:     st.RuleName,
			Active:       st.Active,
			Total:        st.Total,
			Succeeded:    st.Succeeded,
			Failed:       st.Failed,
			SuccessRate:  percent(st.Succeeded, st.Total),
			AvgTimeMs:    math.Round(st.AvgDurationMs*10) / 10,
			LastExecuted: st.LastExecuted,
		})
	}

	return reports, nil
}

// Recent returns the latest execution log entries with lead names.
func (s *Service) Recent(ctx context.Context, companyID uuid.UUID, limit int) ([]repository.RecentExecution, error) {
	return s.log.ListRecent(ctx, companyID, limit)
}

// Recommendation severity and level values.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Recommendation is one optimization hint for a rule.
type Recommendation struct {
	AutomationID uuid.UUID `json:"automationId"`
	RuleName     string    `json:"ruleName"`
	Severity     string    `json:"severity"`
	Priority     string    `json:"priority"`
	Message      string    `json:"message"`
}

// Recommendations inspects each rule's last week, or the given range, and
// flags unreliable, idle and inactive rules, ordered by priority.
func (s *Service) Recommendations(ctx context.Context, companyID uuid.UUID, r Range) ([]Recommendation, error) {
	since, until := s.window(r, recommendationWindowDays)

	stats, err := s.stats.PerRule(ctx, companyID, since, until)
	if err != nil {
		return nil, err
	}

	var recs []Recommendation
	for _, st := range stats {
		switch {
		case !st.Active:
			recs = append(recs, Recommendation{
				AutomationID: st.AutomationID,
				RuleName:     st.RuleName,
				Severity:     SeverityInfo,
				Priority:     PriorityLow,
				Message:      "Rule is inactive and will never fire. Activate it or delete it.",
			})
		case st.Total >= minExecutionsForRate && float64(st.Failed)/float64(st.Total) > failureRateThreshold:
			recs = append(recs, Recommendation{
				AutomationID: st.AutomationID,
				RuleName:     st.RuleName,
				Severity:     SeverityWarning,
				Priority:     PriorityHigh,
				Message:      "More than 30% of this rule's executions failed in the last 7 days. Check its action configuration.",
			})
		case st.Total == 0:
			recs = append(recs, Recommendation{
				AutomationID: st.AutomationID,
				RuleName:     st.RuleName,
				Severity:     SeverityInfo,
				Priority:     PriorityMedium,
				Message:      "Rule has not fired in the last 7 days. Its trigger may be too narrow.",
			})
		}
	}

	rank := map[string]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}
	sort.SliceStable(recs, func(i, j int) bool {
		return rank[recs[i].Priority] < rank[recs[j].Priority]
	})

	return recs, nil
}
