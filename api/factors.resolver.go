package api

import (
	"net/http"
	"strings"

	"maxtrade/internal/app"
	"maxtrade/internal/domain"
	"maxtrade/internal/util"

	"github.com/gin-gonic/gin"
)

// GET /factors/:symbol?categories=momentum,value&asOf=2024-01-31
func (m ApiHandler) factors(c *gin.Context) {
	in := app.ComputeFactorsInput{
		Symbol: c.Param("symbol"),
	}
	if raw := c.Query("categories"); raw != "" {
		for _, category := range strings.Split(raw, ",") {
			if category = strings.TrimSpace(category); category != "" {
				in.Categories = append(in.Categories, category)
			}
		}
	}
	if raw := c.Query("asOf"); raw != "" {
		asOf, err := util.ParseDate(raw)
		if err != nil {
			returnErrorJson(domain.NewValidationError("invalid asOf %q, expected YYYY-MM-DD", raw), c)
			return
		}
		in.AsOf = &asOf
	}

	snapshot, err := m.App.ComputeFactors(c.Request.Context(), in)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (m ApiHandler) strategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": m.App.ListStrategies()})
}
