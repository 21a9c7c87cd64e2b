package api

import (
	"net/http"

	"maxtrade/internal/app"
	"maxtrade/internal/domain"
	"maxtrade/internal/util"

	"github.com/gin-gonic/gin"
)

type ScreenRequest struct {
	Criteria []domain.Criterion `json:"criteria" binding:"required,min=1"`
	Symbols  []string           `json:"symbols" binding:"omitempty,dive,min=1,max=10"`
	Limit    int                `json:"limit" binding:"required,min=1,max=100"`
	AsOf     string             `json:"asOf"`
}

type ScreenResponse struct {
	Results []domain.ScreenResult `json:"results"`
}

func (m ApiHandler) screen(c *gin.Context) {
	var requestBody ScreenRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJson(bindError{err}, c)
		return
	}

	in := app.ScreenInput{
		Symbols:  requestBody.Symbols,
		Criteria: requestBody.Criteria,
		Limit:    requestBody.Limit,
	}
	if requestBody.AsOf != "" {
		asOf, err := util.ParseDate(requestBody.AsOf)
		if err != nil {
			returnErrorJson(domain.NewValidationError("invalid asOf %q, expected YYYY-MM-DD", requestBody.AsOf), c)
			return
		}
		in.AsOf = &asOf
	}

	results, err := m.App.Screen(c.Request.Context(), in)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(http.StatusOK, ScreenResponse{Results: results})
}
