package l3_service

import (
	"context"
	"fmt"
	"time"

	"maxtrade/internal/domain"
	"maxtrade/internal/logger"
	l1_service "maxtrade/internal/service/l1"
	l2_service "maxtrade/internal/service/l2"
)

type ScreenInput struct {
	Universe []string
	Criteria []domain.Criterion
	Limit    int
	// nil screens as of the newest bar on or before Now
	AsOf *time.Time
}

type ScreenerService interface {
	Screen(ctx context.Context, in ScreenInput) ([]domain.ScreenResult, error)
}

type ScreenerSettings struct {
	Workers    int
	WarmupDays int
	// defaults to time.Now
	Now func() time.Time
}

type screenerServiceHandler struct {
	PriceService  l1_service.PriceService
	FactorService l2_service.FactorService
	Settings      ScreenerSettings
	Now           func() time.Time
}

func NewScreenerService(priceService l1_service.PriceService, factorService l2_service.FactorService, settings ScreenerSettings) ScreenerService {
	now := settings.Now
	if now == nil {
		now = time.Now
	}
	return &screenerServiceHandler{
		PriceService:  priceService,
		FactorService: factorService,
		Settings:      settings,
		Now:           now,
	}
}

// Screen scores every symbol with the weighted-criteria formula and
// returns the top Limit. symbols missing any criterion value are left
// out; unlike strategy evaluation a non-positive score still ranks
func (h screenerServiceHandler) Screen(ctx context.Context, in ScreenInput) ([]domain.ScreenResult, error) {
	if len(in.Criteria) == 0 {
		return nil, domain.NewValidationError("at least one criterion is required")
	}
	if in.Limit < 1 {
		return nil, domain.NewValidationError("limit must be >= 1, got %d", in.Limit)
	}
	scorer, err := l2_service.NewCriteriaScorer(in.Criteria)
	if err != nil {
		return nil, err
	}
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()

	end := h.Now().UTC()
	if in.AsOf != nil {
		end = *in.AsOf
	}
	factors := scorer.RequiredFactors()
	lookback := h.FactorService.RequiredBars(factors)
	// calendar days comfortably covering lookback trading days
	warmup := h.Settings.WarmupDays
	if minWarmup := lookback*2 + 10; warmup < minWarmup {
		warmup = minWarmup
	}

	pc, err := h.PriceService.LoadPriceCache(ctx, l1_service.LoadPriceCacheInput{
		Symbols:    in.Universe,
		Start:      end,
		End:        end,
		WarmupDays: warmup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load price cache: %w", err)
	}

	asOf := end
	if in.AsOf == nil {
		latest, ok := pc.LatestTimestamp()
		if !ok {
			return []domain.ScreenResult{}, nil
		}
		asOf = latest
	}

	snapshots, err := h.FactorService.ComputeMany(ctx, l2_service.ComputeManyInput{
		PriceCache: pc,
		Symbols:    pc.Symbols(),
		AsOf:       asOf,
		Factors:    factors,
		Workers:    h.Settings.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute factors: %w", err)
	}

	_, endSpan := profile.StartNewSpan("rank")
	defer endSpan()

	scores := []l2_service.CriteriaScore{}
	for _, symbol := range pc.Symbols() {
		snapshot, ok := snapshots[symbol]
		if !ok {
			continue
		}
		score := scorer.Score(snapshot)
		if !score.Available {
			continue
		}
		scores = append(scores, score)
	}
	l2_service.RankScores(scores)
	if len(scores) > in.Limit {
		scores = scores[:in.Limit]
	}

	out := make([]domain.ScreenResult, 0, len(scores))
	for i, s := range scores {
		out = append(out, domain.ScreenResult{
			Rank:    i + 1,
			Symbol:  s.Symbol,
			Score:   s.Score,
			Factors: snapshots[s.Symbol].Values,
		})
	}

	logger.FromContext(ctx).Debugf("screened %d symbols as of %s, returning %d", len(snapshots), asOf.Format(time.DateOnly), len(out))
	return out, nil
}
