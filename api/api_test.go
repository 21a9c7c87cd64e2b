package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"maxtrade/internal/app"
	mock_app "maxtrade/internal/app/mocks"
	"maxtrade/internal/domain"
	"maxtrade/internal/logger"
	"maxtrade/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRouter(t *testing.T) (*gin.Engine, *mock_app.MockEngineApp) {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	engineApp := mock_app.NewMockEngineApp(ctrl)
	handler := ApiHandler{
		App:    engineApp,
		Logger: logger.NewNop(),
	}
	return handler.InitializeRouterEngine(), engineApp
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	out := errorResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestBacktestRoute(t *testing.T) {
	validBody := map[string]any{
		"strategyId":     "momentum",
		"symbols":        []string{"AAPL", "MSFT"},
		"startDate":      "2024-01-01",
		"endDate":        "2024-06-30",
		"initialCapital": 100000,
		"config": map[string]any{
			"maxPositions":       5,
			"rebalanceFrequency": "weekly",
		},
	}

	t.Run("maps request into engine input", func(t *testing.T) {
		router, engineApp := newTestRouter(t)
		id := uuid.New()

		engineApp.EXPECT().
			RunBacktest(gomock.Any(), app.RunBacktestInput{
				Symbols:        []string{"AAPL", "MSFT"},
				StartDate:      util.NewDate(2024, 1, 1),
				EndDate:        util.NewDate(2024, 6, 30),
				InitialCapital: 100000,
				Config: domain.StrategyConfig{
					StrategyID:         "momentum",
					MaxPositions:       5,
					RebalanceFrequency: domain.RebalanceFrequency_Weekly,
				},
			}).
			Return(&domain.BacktestResult{ID: id, Status: domain.BacktestStatus_Completed}, nil)

		w := doRequest(router, http.MethodPost, "/backtest", validBody)
		require.Equal(t, http.StatusOK, w.Code)

		result := domain.BacktestResult{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		require.Equal(t, id, result.ID)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		cases := map[string]map[string]any{
			"no symbols": {
				"strategyId": "momentum", "symbols": []string{}, "startDate": "2024-01-01", "endDate": "2024-02-01", "initialCapital": 1000,
			},
			"long symbol": {
				"strategyId": "momentum", "symbols": []string{"ABCDEFGHIJK"}, "startDate": "2024-01-01", "endDate": "2024-02-01", "initialCapital": 1000,
			},
			"zero capital": {
				"strategyId": "momentum", "symbols": []string{"AAPL"}, "startDate": "2024-01-01", "endDate": "2024-02-01", "initialCapital": 0,
			},
			"bad date": {
				"strategyId": "momentum", "symbols": []string{"AAPL"}, "startDate": "01/01/2024", "endDate": "2024-02-01", "initialCapital": 1000,
			},
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				router, _ := newTestRouter(t)
				w := doRequest(router, http.MethodPost, "/backtest", body)
				require.Equal(t, http.StatusBadRequest, w.Code)
				require.Equal(t, domain.ErrorCode_Validation, decodeError(t, w).Code)
			})
		}
	})

	t.Run("error codes map to statuses", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
		}{
			{domain.NewValidationError("end before start"), http.StatusBadRequest},
			{domain.NewConfigurationError("unknown strategy"), http.StatusUnprocessableEntity},
			{domain.NewInternalInvariantError("cash negative"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			router, engineApp := newTestRouter(t)
			engineApp.EXPECT().RunBacktest(gomock.Any(), gomock.Any()).Return(nil, tc.err)

			w := doRequest(router, http.MethodPost, "/backtest", validBody)
			require.Equal(t, tc.status, w.Code)
			require.Equal(t, domain.ErrorCodeOf(tc.err), decodeError(t, w).Code)
		}
	})

	t.Run("failed result keeps body", func(t *testing.T) {
		router, engineApp := newTestRouter(t)
		engineApp.EXPECT().RunBacktest(gomock.Any(), gomock.Any()).Return(&domain.BacktestResult{
			Status:  domain.BacktestStatus_Failed,
			Failure: &domain.FailureReason{Code: domain.ErrorCode_Timeout, Message: "too long"},
		}, nil)

		w := doRequest(router, http.MethodPost, "/backtest", validBody)
		require.Equal(t, http.StatusGatewayTimeout, w.Code)

		result := domain.BacktestResult{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		require.Equal(t, domain.BacktestStatus_Failed, result.Status)
	})
}

func TestGetBacktestRoute(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		router, engineApp := newTestRouter(t)
		id := uuid.New()
		engineApp.EXPECT().GetBacktest(gomock.Any(), id).Return(nil, domain.NewNotFoundError("no backtest %s", id))

		w := doRequest(router, http.MethodGet, "/backtest/"+id.String(), nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doRequest(router, http.MethodGet, "/backtest/not-a-uuid", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestScreenRoute(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		router, engineApp := newTestRouter(t)
		criteria := []domain.Criterion{{Factor: "momentum", Weight: 1}}
		engineApp.EXPECT().
			Screen(gomock.Any(), app.ScreenInput{Criteria: criteria, Limit: 5}).
			Return([]domain.ScreenResult{{Rank: 1, Symbol: "AAPL", Score: 3}}, nil)

		w := doRequest(router, http.MethodPost, "/screen", map[string]any{
			"criteria": criteria,
			"limit":    5,
		})
		require.Equal(t, http.StatusOK, w.Code)

		response := ScreenResponse{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Equal(t, "", cmp.Diff([]domain.ScreenResult{{Rank: 1, Symbol: "AAPL", Score: 3}}, response.Results))
	})

	t.Run("limit out of range", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doRequest(router, http.MethodPost, "/screen", map[string]any{
			"criteria": []domain.Criterion{{Factor: "momentum", Weight: 1}},
			"limit":    500,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestFactorsRoute(t *testing.T) {
	router, engineApp := newTestRouter(t)
	snapshot := domain.NewFactorSnapshot("AAPL", util.NewDate(2024, 1, 31))
	snapshot.Set("momentum", util.Ptr(4.2))

	engineApp.EXPECT().
		ComputeFactors(gomock.Any(), app.ComputeFactorsInput{
			Symbol:     "AAPL",
			Categories: []string{"momentum", "value"},
		}).
		Return(snapshot, nil)

	w := doRequest(router, http.MethodGet, "/factors/AAPL?categories=momentum,%20value", nil)
	require.Equal(t, http.StatusOK, w.Code)

	out := domain.FactorSnapshot{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	v, ok := out.Get("momentum")
	require.True(t, ok)
	require.Equal(t, 4.2, v)
}

func TestHealthRoute(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doRequest(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
