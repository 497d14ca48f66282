package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<![CDATA[<p>Hello &amp; welcome</p>]]>", "Hello & welcome"},
		{"&lt;b&gt;Bold&lt;/b&gt; text", "Bold text"},
		{"Tom&amp;#39;s model", "Tom's model"},
		{"<div>  Multiple   spaces  </div>", "Multiple spaces"},
		{"No tags here", "No tags here"},
		{"a<br>b", "a b"},
		{"<p>x</p><script>alert(1)</script>", "x"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.input), "input %q", tt.input)
	}
}

func TestInlineImage(t *testing.T) {
	assert.Equal(t, "https://img.example.com/a.png",
		InlineImage(`<p>intro</p><img src="https://img.example.com/a.png" alt="">`))
	assert.Equal(t, "https://img.example.com/b.png",
		InlineImage(`&lt;img src="https://img.example.com/b.png"&gt;`))
	assert.Equal(t, "", InlineImage(`<img src="/relative.png">`))
	assert.Equal(t, "", InlineImage("plain text"))
}

func TestPlaceholderImageDeterministic(t *testing.T) {
	a := PlaceholderImage("TechCrunch")
	assert.Equal(t, a, PlaceholderImage("techcrunch"))
	assert.Contains(t, placeholders, a)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"2025-01-02T10:00:00Z", time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), true},
		{"Thu, 02 Jan 2025 10:00:00 GMT", time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), true},
		{"20250102T100000Z", time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), true},
		{"2025-01-02", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"not a date", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseTime(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		if tt.ok {
			assert.True(t, tt.want.Equal(got), "input %q: got %v", tt.input, got)
		}
	}
}

func TestPublishedOrNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now, *PublishedOrNow("garbage", now))
	assert.Equal(t, 2024, PublishedOrNow("2024-03-01T00:00:00Z", now).Year())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "this is...", truncate("this is a long string", 10))
	assert.Equal(t, "こん...", truncate("こんにちは世界です", 5))
}
