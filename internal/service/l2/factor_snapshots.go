package l2_service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"maxtrade/internal/domain"
	l1_service "maxtrade/internal/service/l1"
)

type ComputeManyInput struct {
	PriceCache *l1_service.PriceCache
	Symbols    []string
	AsOf       time.Time
	Factors    []domain.FactorSpec
	Workers    int
}

type workInput struct {
	Symbol string
	Window []domain.Bar
}

type workResult struct {
	Symbol   string
	Snapshot *domain.FactorSnapshot
	Err      error
	span     *domain.Span
}

// ComputeMany fans snapshot computation out over a worker pool. each
// symbol is independent and reads only its own window, so ordering of
// completion does not affect the result
func (h factorServiceHandler) ComputeMany(ctx context.Context, in ComputeManyInput) (map[string]*domain.FactorSnapshot, error) {
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()
	span, endSpan := profile.StartNewSpan(fmt.Sprintf("compute factors for %d symbols", len(in.Symbols)))
	defer endSpan()
	subProfile, endSubProfile := span.NewSubProfile()
	defer endSubProfile()

	out := map[string]*domain.FactorSnapshot{}
	if len(in.Symbols) == 0 {
		return out, nil
	}

	lookback := h.RequiredBars(in.Factors)
	inputCh := make(chan workInput, len(in.Symbols))
	resultCh := make(chan workResult, len(in.Symbols))
	for _, symbol := range in.Symbols {
		inputCh <- workInput{
			Symbol: symbol,
			Window: in.PriceCache.Window(symbol, in.AsOf, lookback),
		}
	}
	close(inputCh)

	numGoroutines := in.Workers
	if numGoroutines < 1 {
		numGoroutines = 1
	}
	if numGoroutines > len(in.Symbols) {
		numGoroutines = len(in.Symbols)
	}

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case input, ok := <-inputCh:
					if !ok {
						return
					}
					span, endSpan := domain.NewSpan("compute " + input.Symbol)
					snapshot, err := h.Compute(ctx, ComputeFactorsInput{
						Symbol:  input.Symbol,
						Window:  input.Window,
						AsOf:    in.AsOf,
						Factors: in.Factors,
					})
					if err != nil {
						err = fmt.Errorf("failed to compute factors for %s on %s: %w", input.Symbol, in.AsOf.Format(time.DateOnly), err)
					}
					endSpan()
					resultCh <- workResult{
						Symbol:   input.Symbol,
						Snapshot: snapshot,
						Err:      err,
						span:     span,
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var firstErr error
	for res := range resultCh {
		subProfile.AddSpan(res.span)
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		out[res.Symbol] = res.Snapshot
	}

	if err := domain.ErrorFromContext(ctx); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
