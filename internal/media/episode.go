package media

import (
	"regexp"
	"strconv"
	"strings"
)

// EpisodeInfo is what can be recovered about an episode from its name or path
type EpisodeInfo struct {
	Show    string
	Season  int
	Episode int
}

var (
	titleEpisodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(.+?)\s+S(\d+)E(\d+)`),
		regexp.MustCompile(`(?i)^(.+?)\s*-\s*S(\d+)E(\d+)`),
		regexp.MustCompile(`(?i)^(.+?)\s+(\d+)x(\d+)`),
		regexp.MustCompile(`(?i)^(.+?)\s*-\s*(\d+)x(\d+)`),
		regexp.MustCompile(`(?i)^(.+?)\s+Season\s+(\d+)\s+Episode\s+(\d+)`),
	}
	fileEpisodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)s(\d+)\.?e(\d+)`),
		regexp.MustCompile(`(\d+)x(\d+)`),
		regexp.MustCompile(`(?i)season\s*(\d+).*episode\s*(\d+)`),
	}
	seasonDirRe    = regexp.MustCompile(`(?i)season\s*(\d+)`)
	shortSeasonRe  = regexp.MustCompile(`(?i)^s(\d+)$`)
	libraryDirRe   = regexp.MustCompile(`(?i)tv|shows?|series`)
	genericDirRe   = regexp.MustCompile(`(?i)tv|shows?|series|media|movies`)
	bracketTagRe   = regexp.MustCompile(`\[.*?\]`)
	parenTagRe     = regexp.MustCompile(`\(.*?\)`)
	showParenRe    = regexp.MustCompile(`\s*\(.*?\)\s*`)
	showBracketRe  = regexp.MustCompile(`\s*\[.*?\]\s*`)
	showDashRe     = regexp.MustCompile(`[:\-–—]`)
)

// ParseEpisodeTitle matches "Show S01E02", "Show 1x02" and
// "Show Season 1 Episode 2" forms.
func ParseEpisodeTitle(title string) (EpisodeInfo, bool) {
	for _, re := range titleEpisodePatterns {
		m := re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		season, _ := strconv.Atoi(m[2])
		episode, _ := strconv.Atoi(m[3])
		return EpisodeInfo{Show: strings.TrimSpace(m[1]), Season: season, Episode: episode}, true
	}
	return EpisodeInfo{}, false
}

// ParseEpisodePath recovers show, season and episode from a library path such
// as /tv/Show Name/Season 2/Show.S02E05.mkv. Show is empty when nothing fits.
func ParseEpisodePath(path string) EpisodeInfo {
	normalized := strings.ReplaceAll(strings.ReplaceAll(path, `\`, "/"), "//", "/")
	var parts []string
	for _, p := range strings.Split(normalized, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	info := EpisodeInfo{Season: 1, Episode: 1}
	if len(parts) == 0 {
		return info
	}
	filename := parts[len(parts)-1]

	for i, part := range parts {
		if m := seasonDirRe.FindStringSubmatch(part); m != nil {
			info.Season, _ = strconv.Atoi(m[1])
			if i > 0 {
				info.Show = parts[i-1]
			}
			break
		}
		if m := shortSeasonRe.FindStringSubmatch(part); m != nil {
			info.Season, _ = strconv.Atoi(m[1])
			if i > 0 {
				info.Show = parts[i-1]
			}
			break
		}
	}

	if info.Show == "" {
		for i, part := range parts {
			if libraryDirRe.MatchString(part) {
				if i+1 < len(parts) {
					info.Show = parts[i+1]
				}
				break
			}
		}
	}
	if info.Show == "" {
		for _, part := range parts {
			if !genericDirRe.MatchString(part) {
				info.Show = part
				break
			}
		}
	}

	for _, re := range fileEpisodePatterns {
		m := re.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		if s, _ := strconv.Atoi(m[1]); s > 0 {
			info.Season = s
		}
		info.Episode, _ = strconv.Atoi(m[2])
		break
	}

	if info.Show != "" {
		info.Show = bracketTagRe.ReplaceAllString(info.Show, "")
		info.Show = strings.TrimSpace(parenTagRe.ReplaceAllString(info.Show, ""))
	}
	return info
}

// NormalizeShowTitle is the grouping key for shows
func NormalizeShowTitle(title string) string {
	n := strings.TrimSpace(strings.ToLower(title))
	if n == "" {
		return ""
	}
	n = showParenRe.ReplaceAllString(n, "")
	n = showBracketRe.ReplaceAllString(n, "")
	n = showDashRe.ReplaceAllString(n, " ")
	n = nonWordRe.ReplaceAllString(n, "")
	n = spacesRe.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}
