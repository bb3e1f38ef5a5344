package articlemedia_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/pressmill/article-media/pkg/articlemedia"
)

func TestFoldText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Économie", "economie"},
		{"CAFÉ crème", "cafe creme"},
		{"plain ascii", "plain ascii"},
		{"", ""},
		{"Straße", "straße"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, articlemedia.FoldText(tt.in), "FoldText(%q)", tt.in)
	}
}

func TestExcerpt(t *testing.T) {
	short := "a short body"
	assert.Equal(t, short, articlemedia.Excerpt(short))

	long := strings.Repeat("é", articlemedia.ExcerptLength+50)
	got := articlemedia.Excerpt(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, articlemedia.ExcerptLength+3, utf8.RuneCountInString(got))

	exact := strings.Repeat("x", articlemedia.ExcerptLength)
	assert.Equal(t, exact, articlemedia.Excerpt(exact), "no ellipsis at exactly the limit")
}
