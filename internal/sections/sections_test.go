package sections

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ai-news/internal/model"
)

func TestAssemble(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-3 * time.Hour)
	old := now.Add(-72 * time.Hour)

	in := []model.Article{
		{Title: "launch", URL: "a", PublishedAt: &recent, UpdateType: model.UpdateProduct, Entities: []string{"ChatGPT", "Claude"}},
		{Title: "weights", URL: "b", PublishedAt: &old, UpdateType: model.UpdateModel, Entities: []string{"Llama"}},
		{Title: "paper", URL: "c", UpdateType: model.UpdateResearch},
		{Title: "news", URL: "d", PublishedAt: &recent, UpdateType: model.UpdateNews, Entities: []string{"Claude"}},
	}

	s := Assemble(in, now)

	assert.Len(t, s.Top, 4)
	assert.Equal(t, []string{"launch", "news"}, names(s.WhatsNew))
	assert.Equal(t, []string{"launch"}, names(s.ProductUpdates))
	assert.Equal(t, []string{"weights"}, names(s.ModelReleases))
	assert.Equal(t, []string{"paper"}, names(s.Research))
	assert.Equal(t, []string{"launch", "news"}, names(s.ByProduct["Claude"]))
	assert.Equal(t, []string{"launch"}, names(s.ByProduct["ChatGPT"]))
	assert.Len(t, s.ByProduct, 3)

	s.Top[0].Title = "changed"
	assert.Equal(t, "launch", in[0].Title, "input is not mutated")
}

func TestAssembleEmpty(t *testing.T) {
	s := Assemble(nil, time.Now())
	assert.NotNil(t, s.Top)
	assert.Empty(t, s.WhatsNew)
	assert.Empty(t, s.ByProduct)
}

func names(articles []model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Title
	}
	return out
}
