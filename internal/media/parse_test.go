package media

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/mediahub-go/internal/domain"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Inception", "inception"},
		{"Inception (2010)", "inception"},
		{"The Matrix", "matrix"},
		{"An Unexpected Journey", "unexpected journey"},
		{"Blade Runner 2049 1080p BluRay x264", "blade runner"},
		{"Spider-Man: Homecoming", "spiderman homecoming"},
		{"  Heat   HDR  ", "heat"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.in))
		})
	}
}

func TestNormalizeTitle_CollidesAcrossSources(t *testing.T) {
	assert.Equal(t, NormalizeTitle("Inception"), NormalizeTitle("Inception (2010)"))
	assert.Equal(t, NormalizeTitle("The Dark Knight"), NormalizeTitle("Dark Knight (2008)"))
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Inception (2010)", "Inception"},
		{"The.Dark.Knight.2008.1080p.BluRay.x264", "The Dark Knight"},
		{"Heat [1995] [720p]", "Heat"},
		{"my_home_video", "my home video"},
		{"2012", "2012"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTitle(tt.in))
		})
	}
}

func TestExtractYear(t *testing.T) {
	assert.Equal(t, 2010, ExtractYear("Inception (2010)"))
	assert.Equal(t, 0, ExtractYear("Movie 1080p"))
	assert.Equal(t, 0, ExtractYear("Clip 4096"))
	assert.Equal(t, 0, ExtractYear("no year"))
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, domain.KindEpisode, DetectKind("/media/x/Show.S01E02.mkv", "Show.S01E02"))
	assert.Equal(t, domain.KindEpisode, DetectKind("/media/x/Show 1x02.mkv", "Show 1x02"))
	assert.Equal(t, domain.KindEpisode, DetectKind("/media/tv-shows/Show/pilot.mkv", "pilot"))
	assert.Equal(t, domain.KindMovie, DetectKind("/media/movies/Heat (1995).mkv", "Heat (1995)"))
}

func TestDownloadFilename(t *testing.T) {
	assert.Equal(t, "Inception (2010).mp4", DownloadFilename("Inception", 2010, domain.KindMovie))
	assert.Equal(t, "Pilot.mkv", DownloadFilename("Pilot", 0, domain.KindEpisode))
	assert.Equal(t, "What If... (2021).mkv", DownloadFilename("What If...?", 2021, domain.KindShow))
	assert.Equal(t, "ACDC Live.mp4", DownloadFilename("AC/DC:  Live", 0, domain.KindMovie))
}

func TestIsSupportedMediaFile(t *testing.T) {
	assert.True(t, IsSupportedMediaFile("/a/b.MKV"))
	assert.True(t, IsSupportedMediaFile("clip.m2ts"))
	assert.False(t, IsSupportedMediaFile("notes.txt"))
	assert.False(t, IsSupportedMediaFile("poster.jpg"))
}

func TestPosterCandidates(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "Heat (1995).mkv")
	candidates := PosterCandidates(media)

	assert.Equal(t, filepath.Join(dir, "Heat (1995)-poster.jpg"), candidates[0])
	assert.Contains(t, candidates, filepath.Join(dir, "poster.webp"))
}
