// Package sections 把排好序的文章划分为展示用的栏目
package sections

import (
	"time"

	"ai-news/internal/model"
)

const whatsNewWindow = 48 * time.Hour

type Sections struct {
	Top            []model.Article            `json:"top"`
	WhatsNew       []model.Article            `json:"whatsNew"`
	ProductUpdates []model.Article            `json:"productUpdates"`
	ModelReleases  []model.Article            `json:"modelReleases"`
	Research       []model.Article            `json:"research"`
	ByProduct      map[string][]model.Article `json:"byProduct"`
}

// Assemble 只读投影,不修改文章,各栏目保持输入顺序
func Assemble(articles []model.Article, now time.Time) Sections {
	s := Sections{
		Top:            append([]model.Article{}, articles...),
		WhatsNew:       []model.Article{},
		ProductUpdates: []model.Article{},
		ModelReleases:  []model.Article{},
		Research:       []model.Article{},
		ByProduct:      map[string][]model.Article{},
	}

	for _, a := range articles {
		if a.PublishedAt != nil && !a.PublishedAt.After(now) && now.Sub(*a.PublishedAt) <= whatsNewWindow {
			s.WhatsNew = append(s.WhatsNew, a)
		}

		switch a.UpdateType {
		case model.UpdateProduct:
			s.ProductUpdates = append(s.ProductUpdates, a)
		case model.UpdateModel:
			s.ModelReleases = append(s.ModelReleases, a)
		case model.UpdateResearch:
			s.Research = append(s.Research, a)
		}

		for _, e := range a.Entities {
			s.ByProduct[e] = append(s.ByProduct[e], a)
		}
	}
	return s
}
