package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"maxtrade/internal/app"
	"maxtrade/internal/domain"
	"maxtrade/internal/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ApiHandler struct {
	App    app.EngineApp
	Logger *zap.SugaredLogger
}

func (m ApiHandler) InitializeRouterEngine() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(m.logRequestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to maxtrade"})
	})
	router.GET("/health", m.health)
	router.POST("/backtest", m.backtest)
	router.POST("/backtests/batch", m.backtestBatch)
	router.GET("/backtest/:id", m.getBacktest)
	router.GET("/backtests", m.listBacktests)
	router.POST("/screen", m.screen)
	router.GET("/factors/:symbol", m.factors)
	router.GET("/strategies", m.strategies)

	return router
}

func (m ApiHandler) StartApi(port int) error {
	return m.InitializeRouterEngine().Run(fmt.Sprintf(":%d", port))
}

// statusForError maps the error taxonomy onto http statuses
func statusForError(err error) int {
	var bindErr bindError
	if errors.As(err, &bindErr) {
		return http.StatusBadRequest
	}
	switch domain.ErrorCodeOf(err) {
	case domain.ErrorCode_Validation:
		return http.StatusBadRequest
	case domain.ErrorCode_Configuration:
		return http.StatusUnprocessableEntity
	case domain.ErrorCode_NotFound:
		return http.StatusNotFound
	case domain.ErrorCode_Timeout:
		return http.StatusGatewayTimeout
	case domain.ErrorCode_Canceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code"`
}

func returnErrorJson(err error, c *gin.Context) {
	status := statusForError(err)
	code := domain.ErrorCodeOf(err)
	if status == http.StatusBadRequest {
		code = domain.ErrorCode_Validation
	}
	log := logger.FromContext(c.Request.Context())
	if status >= 500 {
		log.Errorf("%s %s failed: %s", c.Request.Method, c.Request.URL.Path, err.Error())
	} else {
		log.Infof("%s %s rejected: %s", c.Request.Method, c.Request.URL.Path, err.Error())
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

// bindError wraps request decoding failures, which gin reports with
// its own error types
type bindError struct {
	err error
}

func (e bindError) Error() string { return e.err.Error() }
func (e bindError) Unwrap() error { return e.err }

// logRequestMiddleware tags every request with an id and a request
// scoped logger, then logs the outcome
func (m ApiHandler) logRequestMiddleware(c *gin.Context) {
	requestID := uuid.New()
	start := time.Now()

	base := m.Logger
	if base == nil {
		base = zap.S()
	}
	log := base.With("requestId", requestID.String())
	c.Set("requestID", requestID.String())
	c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), log))

	c.Next()

	log.Infow("request",
		"method", c.Request.Method,
		"route", c.FullPath(),
		"status", c.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
		"ip", c.ClientIP(),
	)
}

func (m ApiHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
