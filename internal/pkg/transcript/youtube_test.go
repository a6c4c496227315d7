package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"not a video url", "https://www.youtube.com/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVideoID(tt.url))
		})
	}
}

func TestPickLanguagePrefersEnglishFamily(t *testing.T) {
	assert.Equal(t, "en-GB", pickLanguage([]string{"de", "en-GB", "en", "fr"}))
	assert.Equal(t, "en", pickLanguage([]string{"en", "de"}))
	assert.Equal(t, "de", pickLanguage([]string{"de", "fr"}))
	assert.Equal(t, "", pickLanguage(nil))
}

func TestParseJSON3(t *testing.T) {
	data := []byte(`{
		"events": [
			{"tStartMs": 0, "dDurationMs": 2500, "segs": [{"utf8": "hello "}, {"utf8": "there"}]},
			{"tStartMs": 2500, "dDurationMs": 1337, "segs": [{"utf8": "\n"}]},
			{"tStartMs": 3990, "dDurationMs": 2010, "segs": [{"utf8": "world"}]}
		]
	}`)

	segments, err := parseJSON3(data)
	require.NoError(t, err)
	require.Len(t, segments, 2, "whitespace-only events are dropped")
	assert.Equal(t, Segment{Start: 0, End: 2.5, Text: "hello there"}, segments[0])
	assert.Equal(t, Segment{Start: 3.99, End: 6, Text: "world"}, segments[1])
}
