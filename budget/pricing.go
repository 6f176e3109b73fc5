package budget

import (
	"fmt"
	"math"
	"sort"
)

// Price is USD per 1K tokens.
type Price struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Cost returns the USD cost of one model call.
func (p Price) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*p.Input + float64(outputTokens)/1000*p.Output
}

var prices = map[string]Price{
	"claude-3-5-sonnet": {Input: 0.003, Output: 0.015},
	"claude-3-opus":     {Input: 0.015, Output: 0.075},
	"claude-3-haiku":    {Input: 0.00025, Output: 0.00125},
	"gpt-4o":            {Input: 0.005, Output: 0.015},
	"gpt-4o-mini":       {Input: 0.00015, Output: 0.0006},
	"gpt-4-turbo":       {Input: 0.01, Output: 0.03},
}

// PriceFor looks up the price table entry for a model name.
func PriceFor(model string) (Price, error) {
	p, ok := prices[model]
	if !ok {
		return Price{}, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownModel, model, Models())
	}
	return p, nil
}

// Models lists the priced model names, sorted.
func Models() []string {
	out := make([]string, 0, len(prices))
	for m := range prices {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Tokens is an estimated per-activity token usage.
type Tokens struct {
	Input  int
	Output int
}

// per-activity token usage estimates
var (
	PostTokens    = Tokens{Input: 2000, Output: 500}
	CommentTokens = Tokens{Input: 1500, Output: 300}
	ReadTokens    = Tokens{Input: 500, Output: 50}
)

// Estimate is a projected cost for a given activity profile.
type Estimate struct {
	Model          string             `json:"model"`
	DailyCost      float64            `json:"daily_cost"`
	MonthlyCost    float64            `json:"monthly_cost"`
	PostsPerDay    int                `json:"posts_per_day"`
	CommentsPerDay int                `json:"comments_per_day"`
	ReadsPerDay    int                `json:"reads_per_day"`
	TokensPerDay   int                `json:"tokens_per_day"`
	Breakdown      map[string]float64 `json:"breakdown"`
}

// EstimateCost projects daily and monthly (30 day) cost for a model.
func EstimateCost(model string, postsPerDay, commentsPerDay, readsPerDay int) (Estimate, error) {
	p, err := PriceFor(model)
	if err != nil {
		return Estimate{}, err
	}
	posts := float64(postsPerDay) * p.Cost(PostTokens.Input, PostTokens.Output)
	comments := float64(commentsPerDay) * p.Cost(CommentTokens.Input, CommentTokens.Output)
	reads := float64(readsPerDay) * p.Cost(ReadTokens.Input, ReadTokens.Output)
	daily := posts + comments + reads

	tokens := postsPerDay*(PostTokens.Input+PostTokens.Output) +
		commentsPerDay*(CommentTokens.Input+CommentTokens.Output) +
		readsPerDay*(ReadTokens.Input+ReadTokens.Output)

	return Estimate{
		Model:          model,
		DailyCost:      round(daily, 4),
		MonthlyCost:    round(daily*30, 2),
		PostsPerDay:    postsPerDay,
		CommentsPerDay: commentsPerDay,
		ReadsPerDay:    readsPerDay,
		TokensPerDay:   tokens,
		Breakdown: map[string]float64{
			"posts":    round(posts, 4),
			"comments": round(comments, 4),
			"reads":    round(reads, 4),
		},
	}, nil
}

// CompareModels estimates every priced model, cheapest first.
func CompareModels(postsPerDay, commentsPerDay, readsPerDay int) []Estimate {
	out := make([]Estimate, 0, len(prices))
	for _, m := range Models() {
		est, err := EstimateCost(m, postsPerDay, commentsPerDay, readsPerDay)
		if err != nil {
			continue
		}
		out = append(out, est)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MonthlyCost < out[j].MonthlyCost
	})
	return out
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
