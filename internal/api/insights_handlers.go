// Package api exposes the insight cards over a thin read-only HTTP surface.
// Handlers load records through the record source, run the pure analytics
// engine, and serve the result objects as JSON. No endpoint writes anything.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/campaign-insights/internal/insights"
	"github.com/ignite/campaign-insights/internal/pkg/httputil"
	"github.com/ignite/campaign-insights/internal/pkg/logger"
	"github.com/ignite/campaign-insights/internal/storage"
)

// RecordSource loads the full per-send record set for an account. The CSV
// ingestion pipeline that populates it lives outside this service.
type RecordSource interface {
	GetSendRecords(ctx context.Context, accountID uuid.UUID) ([]insights.SendRecord, error)
}

// InsightsService serves the insight card endpoints.
type InsightsService struct {
	source      RecordSource
	cache       *storage.CardCache
	reliability insights.ReliabilityConfig
	subject     insights.SubjectConfig
	gaps        insights.GapsConfig
	dayOfWeek   insights.DayOfWeekConfig
	volume      insights.VolumeConfig
	narrator    *insights.Narrator
	now         func() time.Time
}

// NewInsightsService creates the service with default engine calibration.
// cache may be nil to disable caching.
func NewInsightsService(source RecordSource, cache *storage.CardCache) *InsightsService {
	return &InsightsService{
		source:      source,
		cache:       cache,
		reliability: insights.DefaultReliabilityConfig(),
		subject:     insights.DefaultSubjectConfig(),
		gaps:        insights.DefaultGapsConfig(),
		dayOfWeek:   insights.DefaultDayOfWeekConfig(),
		volume:      insights.DefaultVolumeConfig(),
		narrator:    insights.NewNarrator(insights.DefaultNarratorConfig()),
		now:         time.Now,
	}
}

// SetReliabilityConfig overrides the scorer calibration (including the trace
// sink) before routes are served.
func (s *InsightsService) SetReliabilityConfig(cfg insights.ReliabilityConfig) {
	s.reliability = cfg
}

// SetSubjectConfig overrides the subject-line analyzer calibration before
// routes are served.
func (s *InsightsService) SetSubjectConfig(cfg insights.SubjectConfig) {
	s.subject = cfg
}

// RegisterRoutes mounts the insight endpoints on the router.
func (s *InsightsService) RegisterRoutes(r chi.Router) {
	r.Route("/api/insights/{accountId}", func(r chi.Router) {
		r.Get("/window", s.handleWindow)
		r.Get("/reliability", s.handleReliability)
		r.Get("/subject-lines", s.handleSubjectLines)
		r.Get("/subject-insight", s.handleSubjectInsight)
		r.Get("/day-of-week", s.handleDayOfWeek)
		r.Get("/volume-guidance", s.handleVolumeGuidance)
		r.Get("/gaps-losses", s.handleGapsLosses)
	})
}

// loadWindowed resolves the account, loads its records, and windows them.
// An explicit ?days=N overrides the walkback window selection.
func (s *InsightsService) loadWindowed(w http.ResponseWriter, r *http.Request) (uuid.UUID, []insights.SendRecord, insights.DateRange, bool) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountId"))
	if err != nil {
		httputil.BadRequest(w, "invalid account id")
		return uuid.Nil, nil, insights.DateRange{}, false
	}

	records, err := s.source.GetSendRecords(r.Context(), accountID)
	if err != nil {
		httputil.InternalError(w, err)
		return uuid.Nil, nil, insights.DateRange{}, false
	}

	window := insights.SelectWindow(records, s.now())
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil || days <= 0 {
			httputil.BadRequest(w, "invalid days parameter")
			return uuid.Nil, nil, insights.DateRange{}, false
		}
		window.Start = window.End.AddDate(0, 0, -days)
		window.Days = days
		window.IsCapped = false
	}

	return accountID, insights.FilterRecords(records, window), window, true
}

func (s *InsightsService) handleWindow(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountId"))
	if err != nil {
		httputil.BadRequest(w, "invalid account id")
		return
	}
	records, err := s.source.GetSendRecords(r.Context(), accountID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, insights.SelectWindow(records, s.now()))
}

func (s *InsightsService) handleReliability(w http.ResponseWriter, r *http.Request) {
	accountID, records, window, ok := s.loadWindowed(w, r)
	if !ok {
		return
	}
	granularity := parseGranularity(r.URL.Query().Get("granularity"))
	scope := parseScope(r.URL.Query().Get("scope"))

	key := storage.Key(accountID, "reliability", window, string(granularity)+":"+string(scope))
	var cached insights.ReliabilityResult
	if s.cache.Get(r.Context(), key, &cached) {
		httputil.OK(w, cached)
		return
	}

	cfg := s.reliability
	cfg.Gaps = s.gaps
	result := insights.ComputeReliability(records, granularity, scope, window.End, cfg)
	s.cacheSet(r.Context(), key, result)
	httputil.OK(w, result)
}

func (s *InsightsService) handleSubjectLines(w http.ResponseWriter, r *http.Request) {
	accountID, records, window, ok := s.loadWindowed(w, r)
	if !ok {
		return
	}
	metric := parseMetric(r.URL.Query().Get("metric"))

	key := storage.Key(accountID, "subject-lines", window, string(metric))
	var cached insights.SubjectAnalysisResult
	if s.cache.Get(r.Context(), key, &cached) {
		httputil.OK(w, cached)
		return
	}

	result := insights.AnalyzeSubjectLines(records, metric, s.subject)
	s.cacheSet(r.Context(), key, result)
	httputil.OK(w, result)
}

func (s *InsightsService) handleSubjectInsight(w http.ResponseWriter, r *http.Request) {
	accountID, records, window, ok := s.loadWindowed(w, r)
	if !ok {
		return
	}
	metric := parseMetric(r.URL.Query().Get("metric"))

	key := storage.Key(accountID, "subject-insight", window, string(metric))
	var cached insights.SubjectLineInsight
	if s.cache.Get(r.Context(), key, &cached) {
		httputil.OK(w, cached)
		return
	}

	analysis := insights.AnalyzeSubjectLines(records, metric, s.subject)
	result := s.narrator.NarrateSubjectInsight(records, analysis)
	s.cacheSet(r.Context(), key, result)
	httputil.OK(w, result)
}

func (s *InsightsService) handleDayOfWeek(w http.ResponseWriter, r *http.Request) {
	accountID, records, window, ok := s.loadWindowed(w, r)
	if !ok {
		return
	}
	frequency := 0
	if f := r.URL.Query().Get("frequency"); f != "" {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid frequency parameter")
			return
		}
		frequency = n
	}

	key := storage.Key(accountID, "day-of-week", window, strconv.Itoa(frequency))
	var cached insights.DayRecommendation
	if s.cache.Get(r.Context(), key, &cached) {
		httputil.OK(w, cached)
		return
	}

	result := insights.ComputeCampaignDayPerformance(records, frequency, s.dayOfWeek)
	s.cacheSet(r.Context(), key, result)
	httputil.OK(w, result)
}

func (s *InsightsService) handleVolumeGuidance(w http.ResponseWriter, r *http.Request) {
	accountID, records, window, ok := s.loadWindowed(w, r)
	if !ok {
		return
	}

	key := storage.Key(accountID, "volume-guidance", window, "")
	var cached insights.VolumeGuidanceResult
	if s.cache.Get(r.Context(), key, &cached) {
		httputil.OK(w, cached)
		return
	}

	result := insights.ComputeVolumeGuidance(records, window.End, s.volume)
	s.cacheSet(r.Context(), key, result)
	httputil.OK(w, result)
}

func (s *InsightsService) handleGapsLosses(w http.ResponseWriter, r *http.Request) {
	accountID, records, window, ok := s.loadWindowed(w, r)
	if !ok {
		return
	}
	granularity := parseGranularity(r.URL.Query().Get("granularity"))

	key := storage.Key(accountID, "gaps-losses", window, string(granularity))
	var cached insights.GapsLossesResult
	if s.cache.Get(r.Context(), key, &cached) {
		httputil.OK(w, cached)
		return
	}

	result := insights.ComputeGapsLosses(records, granularity, window.End, s.gaps)
	s.cacheSet(r.Context(), key, result)
	httputil.OK(w, result)
}

func (s *InsightsService) cacheSet(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value); err != nil {
		logger.Warn("card cache write failed", "key", key, "error", err)
	}
}

func parseGranularity(s string) insights.Granularity {
	if s == string(insights.GranularityMonth) {
		return insights.GranularityMonth
	}
	return insights.GranularityWeek
}

func parseScope(s string) insights.ReliabilityScope {
	switch insights.ReliabilityScope(s) {
	case insights.ScopeCampaign:
		return insights.ScopeCampaign
	case insights.ScopeFlow:
		return insights.ScopeFlow
	default:
		return insights.ScopeAll
	}
}

func parseMetric(s string) insights.SubjectMetric {
	switch insights.SubjectMetric(s) {
	case insights.MetricClickRate:
		return insights.MetricClickRate
	case insights.MetricClickToOpenRate:
		return insights.MetricClickToOpenRate
	case insights.MetricRevenuePerEmail:
		return insights.MetricRevenuePerEmail
	default:
		return insights.MetricOpenRate
	}
}
