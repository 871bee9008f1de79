package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEpisodeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want EpisodeInfo
		ok   bool
	}{
		{"Breaking Bad S02E05 Breakage", EpisodeInfo{"Breaking Bad", 2, 5}, true},
		{"Breaking Bad - S02E05 - Breakage", EpisodeInfo{"Breaking Bad", 2, 5}, true},
		{"Lost 3x07", EpisodeInfo{"Lost", 3, 7}, true},
		{"Dark Season 1 Episode 4", EpisodeInfo{"Dark", 1, 4}, true},
		{"Pilot", EpisodeInfo{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseEpisodeTitle(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEpisodePath(t *testing.T) {
	tests := []struct {
		in   string
		want EpisodeInfo
	}{
		{"/tvshows/The Sandman/Season 2/The.Sandman.S02E03.mkv", EpisodeInfo{"The Sandman", 2, 3}},
		{"/media/tv/Severance/S01/episode.mp4", EpisodeInfo{"Severance", 1, 1}},
		{`D:\shows\Andor (2022)\Andor 1x04.mkv`, EpisodeInfo{"Andor", 1, 4}},
		{"/Frasier/frasier.s05.e12.avi", EpisodeInfo{"Frasier", 5, 12}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEpisodePath(tt.in))
		})
	}
}

func TestNormalizeShowTitle(t *testing.T) {
	assert.Equal(t, "daredevil born again", NormalizeShowTitle("Daredevil: Born Again (2025)"))
	assert.Equal(t, "the office us", NormalizeShowTitle("The Office - US [HD]"))
	assert.Equal(t, "", NormalizeShowTitle("  "))
}
