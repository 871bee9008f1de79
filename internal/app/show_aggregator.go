package app

import (
	"sort"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/media"
)

// ShowAggregator groups episode items into shows and seasons
type ShowAggregator struct {
	logger *zap.Logger
}

// NewShowAggregator creates a new show aggregator
func NewShowAggregator(logger *zap.Logger) *ShowAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShowAggregator{logger: logger}
}

type showGroup struct {
	key      string
	title    string
	year     int
	thumb    string
	metadata map[string]interface{}
	episodes []episodeRef
}

type episodeRef struct {
	season  int
	episode int
	item    *domain.CatalogItem
}

// Aggregate builds shows from episode and show items. Standalone show
// entries are folded into a matching episode group when one exists.
func (a *ShowAggregator) Aggregate(items []*domain.CatalogItem) []*domain.Show {
	groups := map[string]*showGroup{}
	var order []string

	for _, item := range items {
		if item.Kind != domain.KindEpisode {
			continue
		}
		info := a.parseEpisode(item)
		if info.Show == "" {
			continue
		}
		key := media.NormalizeShowTitle(info.Show)
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &showGroup{
				key:      key,
				title:    info.Show,
				year:     item.Year,
				thumb:    item.ThumbnailURL,
				metadata: copyMetadata(item.Metadata),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.episodes = append(g.episodes, episodeRef{season: info.Season, episode: info.Episode, item: item})
	}

	for _, item := range items {
		if item.Kind != domain.KindShow {
			continue
		}
		var match *showGroup
		for _, key := range order {
			if isSameShow(item.Title, groups[key].title) {
				match = groups[key]
				break
			}
		}
		if match == nil {
			key := media.NormalizeShowTitle(item.Title)
			if key == "" {
				continue
			}
			if existing, ok := groups[key]; ok {
				match = existing
			} else {
				groups[key] = &showGroup{
					key:      key,
					title:    item.Title,
					year:     item.Year,
					thumb:    item.ThumbnailURL,
					metadata: copyMetadata(item.Metadata),
				}
				order = append(order, key)
				continue
			}
		}
		enrichGroup(match, item)
	}

	shows := make([]*domain.Show, 0, len(order))
	for _, key := range order {
		shows = append(shows, buildShow(groups[key]))
	}
	sort.SliceStable(shows, func(i, j int) bool {
		return strings.ToLower(shows[i].Title) < strings.ToLower(shows[j].Title)
	})

	a.logger.Debug("Aggregated shows", zap.Int("items", len(items)), zap.Int("shows", len(shows)))
	return shows
}

// Search ranks shows by fuzzy title match, best first
func (a *ShowAggregator) Search(shows []*domain.Show, query string) []*domain.Show {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return shows
	}
	titles := make([]string, len(shows))
	for i, s := range shows {
		titles[i] = strings.ToLower(s.Title)
	}

	ranks := fuzzy.RankFindFold(query, titles)
	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].Distance < ranks[j].Distance
	})

	out := make([]*domain.Show, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, shows[r.OriginalIndex])
	}
	return out
}

// parseEpisode resolves show, season and episode. Explicit metadata wins,
// then the remote path, then the local path, then the title itself.
func (a *ShowAggregator) parseEpisode(item *domain.CatalogItem) media.EpisodeInfo {
	md := item.Metadata
	if name, ok := md["series_name"].(string); ok && name != "" {
		season, okS := intValue(md["season_number"])
		episode, okE := intValue(md["episode_number"])
		if okS && okE {
			return media.EpisodeInfo{Show: name, Season: season, Episode: episode}
		}
	}
	if p, ok := md["path"].(string); ok && p != "" {
		if info := media.ParseEpisodePath(p); info.Show != "" {
			return info
		}
	}
	if item.LocalPath != "" {
		if info := media.ParseEpisodePath(item.LocalPath); info.Show != "" {
			return info
		}
	}
	if info, ok := media.ParseEpisodeTitle(item.Title); ok {
		return info
	}
	a.logger.Debug("Could not parse episode info", zap.String("title", item.Title))
	return media.EpisodeInfo{Show: item.Title, Season: 1, Episode: 1}
}

// isSameShow treats equal keys, or keys where one contains the other and
// they share at least 80% of the shorter title's words, as one show.
func isSameShow(a, b string) bool {
	na, nb := media.NormalizeShowTitle(a), media.NormalizeShowTitle(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if !strings.Contains(na, nb) && !strings.Contains(nb, na) {
		return false
	}

	wa, wb := wordSet(na), wordSet(nb)
	common := 0
	for w := range wa {
		if wb[w] {
			common++
		}
	}
	shorter := len(wa)
	if len(wb) < shorter {
		shorter = len(wb)
	}
	return float64(common) >= float64(shorter)*0.8
}

func wordSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}

func enrichGroup(g *showGroup, item *domain.CatalogItem) {
	if g.thumb == "" {
		g.thumb = item.ThumbnailURL
	}
	if g.year == 0 {
		g.year = item.Year
	}
	if g.metadata == nil {
		g.metadata = map[string]interface{}{}
	}
	for k, v := range item.Metadata {
		if cur, ok := g.metadata[k]; !ok || isEmptyValue(cur) {
			g.metadata[k] = v
		}
	}
}

func buildShow(g *showGroup) *domain.Show {
	show := &domain.Show{
		ID:           "show_" + strings.ReplaceAll(g.key, " ", "_"),
		Title:        g.title,
		Year:         g.year,
		ThumbnailURL: g.thumb,
		Metadata:     g.metadata,
		Seasons:      []*domain.Season{},
	}

	bySeason := map[int]*domain.Season{}
	for _, ep := range g.episodes {
		season, ok := bySeason[ep.season]
		if !ok {
			season = &domain.Season{Number: ep.season, Title: "Season " + strconv.Itoa(ep.season)}
			bySeason[ep.season] = season
			show.Seasons = append(show.Seasons, season)
		}
		season.Episodes = append(season.Episodes, &domain.Episode{Number: ep.episode, Item: ep.item})
	}

	sort.Slice(show.Seasons, func(i, j int) bool { return show.Seasons[i].Number < show.Seasons[j].Number })
	for _, season := range show.Seasons {
		sort.SliceStable(season.Episodes, func(i, j int) bool {
			return season.Episodes[i].Number < season.Episodes[j].Number
		})
	}
	return show
}

func copyMetadata(md map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func isEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	}
	return false
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
