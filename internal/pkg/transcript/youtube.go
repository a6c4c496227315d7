package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11}).*`),
	regexp.MustCompile(`(?:embed/|v/|youtu\.be/)([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`(?:watch\?v=)([0-9A-Za-z_-]{11})`),
}

// ExtractVideoID pulls the 11-character video ID out of any of the common
// YouTube URL shapes. Returns "" when the URL carries no video ID.
func ExtractVideoID(link string) string {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return ""
}

// pickLanguage prefers the first English-family track (en, en-US, en-GB, ...)
// and otherwise falls back to the first track offered.
func pickLanguage(codes []string) string {
	for _, c := range codes {
		if strings.HasPrefix(c, "en") {
			return c
		}
	}
	if len(codes) > 0 {
		return codes[0]
	}
	return ""
}

func httpGet(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return io.ReadAll(resp.Body)
}

// json3 is YouTube's JSON caption format: a flat list of timed events, each
// holding one or more UTF-8 runs.
type json3Doc struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func parseJSON3(data []byte) ([]Segment, error) {
	var doc json3Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var segments []Segment
	for _, ev := range doc.Events {
		var b strings.Builder
		for _, seg := range ev.Segs {
			b.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(strings.ReplaceAll(b.String(), "\n", " "))
		if text == "" {
			continue
		}
		start := float64(ev.StartMs) / 1000
		segments = append(segments, Segment{
			Start: round2(start),
			End:   round2(start + float64(ev.DurationMs)/1000),
			Text:  text,
		})
	}
	return segments, nil
}

// TimedTextStrategy acquires captions through YouTube's timedtext API: list
// the available tracks, pick a language, download that track.
type TimedTextStrategy struct {
	client *http.Client
}

func NewTimedTextStrategy(client *http.Client) *TimedTextStrategy {
	return &TimedTextStrategy{client: client}
}

func (s *TimedTextStrategy) Name() string { return "timedtext" }

func (s *TimedTextStrategy) Fetch(ctx context.Context, videoID string) ([]Segment, error) {
	listURL := "https://www.youtube.com/api/timedtext?type=list&v=" + url.QueryEscape(videoID)
	data, err := httpGet(ctx, s.client, listURL)
	if err != nil {
		return nil, err
	}

	var list struct {
		Tracks []struct {
			LangCode string `xml:"lang_code,attr"`
		} `xml:"track"`
	}
	if err := xml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse track list: %w", err)
	}

	codes := make([]string, 0, len(list.Tracks))
	for _, t := range list.Tracks {
		codes = append(codes, t.LangCode)
	}
	lang := pickLanguage(codes)
	if lang == "" {
		return nil, fmt.Errorf("no caption tracks for video %s", videoID)
	}

	trackURL := fmt.Sprintf("https://www.youtube.com/api/timedtext?v=%s&lang=%s&fmt=json3",
		url.QueryEscape(videoID), url.QueryEscape(lang))
	data, err = httpGet(ctx, s.client, trackURL)
	if err != nil {
		return nil, err
	}
	return parseJSON3(data)
}

var captionTracksRe = regexp.MustCompile(`"captionTracks":(\[.*?\])`)

// WatchPageStrategy scrapes the player config embedded in the watch page for
// caption track URLs. Used when the timedtext listing comes back empty,
// which it does for some auto-generated tracks.
type WatchPageStrategy struct {
	client *http.Client
}

func NewWatchPageStrategy(client *http.Client) *WatchPageStrategy {
	return &WatchPageStrategy{client: client}
}

func (s *WatchPageStrategy) Name() string { return "watch-page" }

func (s *WatchPageStrategy) Fetch(ctx context.Context, videoID string) ([]Segment, error) {
	page, err := httpGet(ctx, s.client, "https://www.youtube.com/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return nil, err
	}

	m := captionTracksRe.FindSubmatch(page)
	if m == nil {
		return nil, fmt.Errorf("no caption tracks in watch page for video %s", videoID)
	}

	var tracks []struct {
		BaseURL      string `json:"baseUrl"`
		LanguageCode string `json:"languageCode"`
	}
	if err := json.Unmarshal(m[1], &tracks); err != nil {
		return nil, fmt.Errorf("parse caption tracks: %w", err)
	}

	codes := make([]string, len(tracks))
	for i, t := range tracks {
		codes[i] = t.LanguageCode
	}
	lang := pickLanguage(codes)

	var baseURL string
	for _, t := range tracks {
		if t.LanguageCode == lang {
			baseURL = t.BaseURL
			break
		}
	}
	if baseURL == "" {
		return nil, fmt.Errorf("no usable caption track for video %s", videoID)
	}

	data, err := httpGet(ctx, s.client, baseURL+"&fmt=json3")
	if err != nil {
		return nil, err
	}
	return parseJSON3(data)
}

var ogTitleRe = regexp.MustCompile(`<meta property="og:title" content="([^"]*)"`)

// YouTubeTitleFetcher resolves a video's title from the watch page og:title
// tag.
type YouTubeTitleFetcher struct {
	client *http.Client
}

func NewYouTubeTitleFetcher(client *http.Client) *YouTubeTitleFetcher {
	return &YouTubeTitleFetcher{client: client}
}

func (f *YouTubeTitleFetcher) FetchTitle(ctx context.Context, videoID string) (string, error) {
	page, err := httpGet(ctx, f.client, "https://www.youtube.com/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return "", err
	}
	m := ogTitleRe.FindSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("no og:title in watch page for video %s", videoID)
	}
	return html.UnescapeString(string(m[1])), nil
}
