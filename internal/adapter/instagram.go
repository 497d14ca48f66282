package adapter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-news/internal/model"
)

const defaultInboxSize = 200

// InstagramPost webhook 推送的单条帖子
type InstagramPost struct {
	ID           string `json:"id"`
	Username     string `json:"username" binding:"required"`
	Caption      string `json:"caption"`
	Permalink    string `json:"permalink" binding:"required,url"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Timestamp    string `json:"timestamp"`
}

// InstagramInbox 保存 webhook 推送的帖子,作为 Instagram 来源池的数据
type InstagramInbox struct {
	mu    sync.Mutex
	posts []InstagramPost
	size  int
	now   func() time.Time
}

func NewInstagramInbox(size int) *InstagramInbox {
	if size <= 0 {
		size = defaultInboxSize
	}
	return &InstagramInbox{size: size, now: time.Now}
}

func (in *InstagramInbox) Origin() model.Origin {
	return model.OriginInstagram
}

// Push 写入帖子,相同 permalink 的旧帖子会被替换,超过容量时丢弃最旧的
func (in *InstagramInbox) Push(posts ...InstagramPost) int {
	in.mu.Lock()
	defer in.mu.Unlock()

	accepted := 0
	for _, p := range posts {
		if !isHTTP(p.Permalink) {
			continue
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}

		key := model.NormalizeURL(p.Permalink)
		kept := in.posts[:0]
		for _, old := range in.posts {
			if model.NormalizeURL(old.Permalink) != key {
				kept = append(kept, old)
			}
		}
		in.posts = append(kept, p)
		accepted++
	}

	if over := len(in.posts) - in.size; over > 0 {
		in.posts = append([]InstagramPost(nil), in.posts[over:]...)
	}
	return accepted
}

// Len 当前帖子数
func (in *InstagramInbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.posts)
}

func (in *InstagramInbox) Fetch(ctx context.Context) Result {
	in.mu.Lock()
	posts := append([]InstagramPost(nil), in.posts...)
	in.mu.Unlock()

	now := in.now()
	articles := make([]model.Article, 0, len(posts))
	for i := len(posts) - 1; i >= 0; i-- {
		p := posts[i]
		caption := CleanText(p.Caption)
		source := "Instagram @" + strings.TrimPrefix(p.Username, "@")

		articles = append(articles, model.Article{
			Title:       captionTitle(caption),
			Description: truncate(caption, maxDescriptionLength),
			URL:         p.Permalink,
			ImageURL:    firstNonEmpty(FirstImage(p.MediaURL, p.ThumbnailURL), PlaceholderImage(source)),
			PublishedAt: PublishedOrNow(p.Timestamp, now),
			Source:      model.Source{Name: source, Type: "social"},
			Origin:      model.OriginInstagram,
		})
	}
	return Result{Origin: model.OriginInstagram, Articles: articles}
}

// captionTitle 取说明文字的第一句作为标题
func captionTitle(caption string) string {
	if caption == "" {
		return "Instagram post"
	}
	title := caption
	if i := strings.IndexAny(title, ".!?\n"); i > 0 {
		title = title[:i]
	}
	return truncate(strings.TrimSpace(title), 120)
}
