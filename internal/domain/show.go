package domain

// ShowAvailability summarizes where the episodes of a show can be found
type ShowAvailability string

const (
	ShowNone           ShowAvailability = "none"
	ShowLocalOnly      ShowAvailability = "local_only"
	ShowRemoteOnly     ShowAvailability = "remote_only"
	ShowMixed          ShowAvailability = "mixed"
	ShowCompleteLocal  ShowAvailability = "complete_local"
	ShowCompleteRemote ShowAvailability = "complete_remote"
	ShowCompleteBoth   ShowAvailability = "complete_both"
)

// Episode is a single episode inside a season
type Episode struct {
	Number int          `json:"episode_number"`
	Item   *CatalogItem `json:"item"`
}

// Season groups the episodes of one season
type Season struct {
	Number   int        `json:"season_number"`
	Title    string     `json:"title"`
	Episodes []*Episode `json:"episodes"`
}

// Show is a TV series assembled from catalog items
type Show struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Year         int                    `json:"year,omitempty"`
	ThumbnailURL string                 `json:"thumbnail_url,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Seasons      []*Season              `json:"seasons"`
}

// Episodes returns every episode across seasons
func (s *Show) Episodes() []*Episode {
	var out []*Episode
	for _, season := range s.Seasons {
		out = append(out, season.Episodes...)
	}
	return out
}

// Availability derives the show level availability from its episodes
func (s *Show) Availability() ShowAvailability {
	eps := s.Episodes()
	if len(eps) == 0 {
		return ShowNone
	}
	local, remote := 0, 0
	for _, ep := range eps {
		switch ep.Item.Availability {
		case AvailabilityLocalOnly:
			local++
		case AvailabilityRemoteOnly:
			remote++
		case AvailabilityBoth:
			local++
			remote++
		}
	}
	total := len(eps)
	switch {
	case local == 0 && remote == 0:
		return ShowNone
	case local == total && remote == 0:
		return ShowCompleteLocal
	case remote == total && local == 0:
		return ShowCompleteRemote
	case local == total && remote == total:
		return ShowCompleteBoth
	case local > 0 && remote > 0:
		return ShowMixed
	case local > 0:
		return ShowLocalOnly
	default:
		return ShowRemoteOnly
	}
}
