// Package media holds filename and title heuristics shared by the local
// library scanner, the unification engine and the download naming rules.
package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/mediahub-go/internal/domain"
)

const qualityTags = `1080p?|720p?|480p?|4k|uhd|hdr|bluray|bdrip|dvdrip|webrip|hdtv|x264|x265`

var (
	separatorRe     = regexp.MustCompile(`[._-]+`)
	parenYearRe     = regexp.MustCompile(`\([^)]*\d{4}[^)]*\)`)
	bracketYearRe   = regexp.MustCompile(`\[[^\]]*\d{4}[^\]]*\]`)
	parenQualityRe  = regexp.MustCompile(`(?i)\([^)]*(?:` + qualityTags + `)[^)]*\)`)
	bracketQualRe   = regexp.MustCompile(`(?i)\[[^\]]*(?:` + qualityTags + `)[^\]]*\]`)
	yearWordRe      = regexp.MustCompile(`\b\d{4}\b`)
	qualityWordRe   = regexp.MustCompile(`(?i)\b(?:1080p?|720p?|480p?|4k|uhd|hdr|bluray|bdrip|dvdrip|webrip|hdtv|x264|x265|h\.264|h\.265|hevc)\b`)
	emptyParenRe    = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	leadingArticle  = regexp.MustCompile(`^(?:the|a|an)\s+`)
	nonWordRe       = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spacesRe        = regexp.MustCompile(`\s+`)
	normQualityRe   = regexp.MustCompile(`\b(?:1080p?|720p?|480p?|4k|uhd|hdr|bluray|bdrip|dvdrip|webrip|hdtv|x264|x265|h\.?264|h\.?265|hevc)\b`)
	firstYearRe     = regexp.MustCompile(`\d{4}`)
	episodeHintRe   = regexp.MustCompile(`s\d+e\d+|season\s*\d+|episode\s*\d+|\d+x\d+`)
	forbiddenCharRe = regexp.MustCompile(`[<>:"/\\|?*]`)
)

var supportedExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".mpg": true, ".mpeg": true,
	".3gp": true, ".ogv": true, ".ts": true, ".m2ts": true, ".mts": true,
}

// PosterExtensions are the image extensions recognized for sidecar posters
var PosterExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp", ".gif"}

// IsSupportedMediaFile reports whether path has a video extension we index
func IsSupportedMediaFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// NormalizeTitle produces the deduplication key for a title
func NormalizeTitle(title string) string {
	n := strings.ToLower(title)
	n = leadingArticle.ReplaceAllString(n, "")
	n = nonWordRe.ReplaceAllString(n, "")
	n = spacesRe.ReplaceAllString(n, " ")
	n = yearWordRe.ReplaceAllString(n, "")
	n = normQualityRe.ReplaceAllString(n, "")
	n = spacesRe.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// ExtractTitle derives a human title from a file name without extension
func ExtractTitle(name string) string {
	t := separatorRe.ReplaceAllString(name, " ")
	t = parenYearRe.ReplaceAllString(t, "")
	t = bracketYearRe.ReplaceAllString(t, "")
	t = parenQualityRe.ReplaceAllString(t, "")
	t = bracketQualRe.ReplaceAllString(t, "")
	t = yearWordRe.ReplaceAllString(t, "")
	t = qualityWordRe.ReplaceAllString(t, "")
	t = emptyParenRe.ReplaceAllString(t, "")
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		return name
	}
	return t
}

// ExtractYear returns the first 4-digit run when it is a plausible release year
func ExtractYear(name string) int {
	m := firstYearRe.FindString(name)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	if y < 1900 || y > 2030 {
		return 0
	}
	return y
}

// DetectKind guesses whether a file is a movie or an episode
func DetectKind(path, name string) domain.MediaKind {
	if episodeHintRe.MatchString(strings.ToLower(name)) {
		return domain.KindEpisode
	}
	p := strings.ToLower(path)
	if strings.Contains(p, "tv") || strings.Contains(p, "series") || strings.Contains(p, "shows") {
		return domain.KindEpisode
	}
	return domain.KindMovie
}

// SanitizeFilename removes characters that are invalid in file names
func SanitizeFilename(name string) string {
	s := forbiddenCharRe.ReplaceAllString(name, "")
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}

// DownloadFilename builds "Title (Year).ext" for a transfer target
func DownloadFilename(title string, year int, kind domain.MediaKind) string {
	base := title
	if year > 0 {
		base = fmt.Sprintf("%s (%d)", title, year)
	}
	base = SanitizeFilename(base)
	if base == "" {
		base = "download"
	}
	ext := ".mp4"
	if kind == domain.KindShow || kind == domain.KindEpisode {
		ext = ".mkv"
	}
	return base + ext
}

// PosterCandidates lists sidecar poster paths for a media file in lookup order
func PosterCandidates(mediaPath string) []string {
	dir := filepath.Dir(mediaPath)
	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	patterns := []string{stem + "-poster", stem + ".poster", stem + "_poster", "poster"}
	out := make([]string, 0, len(patterns)*len(PosterExtensions))
	for _, p := range patterns {
		for _, ext := range PosterExtensions {
			out = append(out, filepath.Join(dir, p+ext))
		}
	}
	return out
}
