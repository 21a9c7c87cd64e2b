package api

import (
	"net/http"
	"strconv"

	"maxtrade/internal/app"
	"maxtrade/internal/domain"
	"maxtrade/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BacktestRequest struct {
	StrategyID     string                 `json:"strategyId" binding:"required"`
	Symbols        []string               `json:"symbols" binding:"required,min=1,dive,min=1,max=10"`
	StartDate      string                 `json:"startDate" binding:"required"`
	EndDate        string                 `json:"endDate" binding:"required"`
	InitialCapital float64                `json:"initialCapital" binding:"required,gt=0"`
	Config         *domain.StrategyConfig `json:"config"`
}

type BacktestBatchRequest struct {
	Backtests []BacktestRequest `json:"backtests" binding:"required,min=1,dive"`
}

func (r BacktestRequest) toInput() (*app.RunBacktestInput, error) {
	start, err := util.ParseDate(r.StartDate)
	if err != nil {
		return nil, domain.NewValidationError("invalid startDate %q, expected YYYY-MM-DD", r.StartDate)
	}
	end, err := util.ParseDate(r.EndDate)
	if err != nil {
		return nil, domain.NewValidationError("invalid endDate %q, expected YYYY-MM-DD", r.EndDate)
	}

	cfg := domain.StrategyConfig{}
	if r.Config != nil {
		cfg = *r.Config
	}
	cfg.StrategyID = r.StrategyID

	return &app.RunBacktestInput{
		Symbols:        r.Symbols,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: r.InitialCapital,
		Config:         cfg,
	}, nil
}

func (m ApiHandler) backtest(c *gin.Context) {
	var requestBody BacktestRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJson(bindError{err}, c)
		return
	}

	in, err := requestBody.toInput()
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	result, err := m.App.RunBacktest(c.Request.Context(), *in)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(statusForResult(result), result)
}

func (m ApiHandler) backtestBatch(c *gin.Context) {
	var requestBody BacktestBatchRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJson(bindError{err}, c)
		return
	}

	inputs := []app.RunBacktestInput{}
	for _, r := range requestBody.Backtests {
		in, err := r.toInput()
		if err != nil {
			returnErrorJson(err, c)
			return
		}
		inputs = append(inputs, *in)
	}

	results, err := m.App.RunBacktests(c.Request.Context(), inputs)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (m ApiHandler) getBacktest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		returnErrorJson(domain.NewValidationError("invalid backtest id %q", c.Param("id")), c)
		return
	}

	result, err := m.App.GetBacktest(c.Request.Context(), id)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (m ApiHandler) listBacktests(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			returnErrorJson(domain.NewValidationError("invalid limit %q", raw), c)
			return
		}
		limit = parsed
	}

	summaries, err := m.App.ListBacktests(c.Request.Context(), limit)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"backtests": summaries})
}

// statusForResult keeps failed runs distinguishable from successes while
// still returning the partial result body
func statusForResult(result *domain.BacktestResult) int {
	if result.Failure == nil {
		return http.StatusOK
	}
	switch result.Failure.Code {
	case domain.ErrorCode_Configuration:
		return http.StatusUnprocessableEntity
	case domain.ErrorCode_Timeout:
		return http.StatusGatewayTimeout
	case domain.ErrorCode_Canceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
