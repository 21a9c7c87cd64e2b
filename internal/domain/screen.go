package domain

type ScreenResult struct {
	Rank    int                 `json:"rank"`
	Symbol  string              `json:"symbol"`
	Score   float64             `json:"score"`
	Factors map[string]*float64 `json:"factors"`
}
