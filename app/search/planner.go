// Package search turns raw search parameters into a planned store query.
package search

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/MrMohammed1/miran-search/app/logging"
	"github.com/MrMohammed1/miran-search/app/metrics"
	"github.com/MrMohammed1/miran-search/app/textnorm"
	"github.com/MrMohammed1/miran-search/models"
)

const tracerName = "github.com/MrMohammed1/miran-search/app/search"

type ProductSearcher interface {
	Search(ctx context.Context, q models.SearchQuery, offset, limit int) ([]models.SearchHit, int64, error)
}

type Config struct {
	Weights          models.SearchWeights
	RankThreshold    float64
	ShortQueryMaxLen int
}

func DefaultConfig() Config {
	return Config{
		Weights:          models.SearchWeights{Name: 2.0, Brand: 1.0, Description: 0.5, Category: 0.8},
		RankThreshold:    0.2,
		ShortQueryMaxLen: 2,
	}
}

// Params are the search inputs as received from the client. Calorie bounds
// stay raw so that malformed values can be dropped individually.
type Params struct {
	Query       string
	Category    string
	CaloriesMin string
	CaloriesMax string
}

type Planner struct {
	store   ProductSearcher
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewPlanner(store ProductSearcher, cfg Config, logger *zap.Logger, collector *metrics.Collector) *Planner {
	if collector == nil {
		collector = metrics.NewCollector("miran")
	}
	return &Planner{
		store:   store,
		cfg:     cfg,
		logger:  logging.OrNop(logger),
		metrics: collector,
	}
}

// Plan normalizes the parameters and picks the matching strategy.
func (p *Planner) Plan(params Params) models.SearchQuery {
	term := textnorm.Normalize(strings.TrimSpace(params.Query))

	q := models.SearchQuery{
		Mode:          models.SimilarityMode,
		Term:          term,
		Category:      textnorm.Normalize(strings.TrimSpace(params.Category)),
		CaloriesMin:   p.parseBound("calories_min", params.CaloriesMin),
		CaloriesMax:   p.parseBound("calories_max", params.CaloriesMax),
		Weights:       p.cfg.Weights,
		RankThreshold: p.cfg.RankThreshold,
	}
	if utf8.RuneCountInString(term) <= p.cfg.ShortQueryMaxLen {
		q.Mode = models.SubstringMode
	}
	return q
}

// Search plans params and runs the query against the store.
func (p *Planner) Search(ctx context.Context, params Params, offset, limit int) ([]models.SearchHit, int64, error) {
	q := p.Plan(params)
	if q.Term == "" {
		return []models.SearchHit{}, 0, nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "search.Planner.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.mode", q.Mode.String()),
		attribute.Int("search.term_length", utf8.RuneCountInString(q.Term)),
		attribute.Bool("search.category_filter", q.Category != ""),
		attribute.Int("search.offset", offset),
		attribute.Int("search.limit", limit),
	)

	start := time.Now()
	hits, total, err := p.store.Search(ctx, q, offset, limit)
	p.metrics.ObserveSearch(q.Mode.String(), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store search failed")
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	span.SetAttributes(attribute.Int64("search.total", total))

	p.logger.Debug("search executed",
		zap.String("mode", q.Mode.String()),
		zap.Int64("total", total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return hits, total, nil
}

func (p *Planner) parseBound(name, raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		p.logger.Warn("ignoring malformed calorie bound", zap.String("param", name), zap.String("value", raw))
		return nil
	}
	return &v
}
