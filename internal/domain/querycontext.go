package domain

import (
	"encoding/json"
	"fmt"
)

// QueryContext is the structured description of what a ticket wants
// acquired. Tags drive routing/quality hints; Description is freeform
// natural language; Expected, when present, narrows the target to a
// specific content shape so TextBrain and the file-mapper can be precise.
type QueryContext struct {
	Tags              []string           `json:"tags"`
	Description       string             `json:"description"`
	Expected          Expected           `json:"expected,omitempty"`
	SearchConstraints *SearchConstraints `json:"search_constraints,omitempty"`
}

// Expected is a tagged variant narrowing QueryContext to a specific media
// shape. A nil Expected means "freeform, use Description and Tags only".
type Expected interface {
	isExpected()
	ExpectedType() string
}

// ExpectedAlbum targets a specific album, optionally with a known track
// list (used by the file-to-item mapper to match downloaded files).
type ExpectedAlbum struct {
	Artist string          `json:"artist"`
	Title  string          `json:"title"`
	Tracks []ExpectedTrack `json:"tracks,omitempty"`
}

func (ExpectedAlbum) isExpected()          {}
func (ExpectedAlbum) ExpectedType() string { return "album" }

// ExpectedTrack is one track of an ExpectedAlbum's track list.
type ExpectedTrack struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ExpectedSingleTrack targets one standalone track.
type ExpectedSingleTrack struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

func (ExpectedSingleTrack) isExpected()          {}
func (ExpectedSingleTrack) ExpectedType() string { return "track" }

// ExpectedMovie targets a movie, optionally disambiguated by release year.
type ExpectedMovie struct {
	Title string `json:"title"`
	Year  *int   `json:"year,omitempty"`
}

func (ExpectedMovie) isExpected()          {}
func (ExpectedMovie) ExpectedType() string { return "movie" }

// ExpectedTvEpisode targets one or more episodes of a TV series.
type ExpectedTvEpisode struct {
	Series   string `json:"series"`
	Season   int    `json:"season"`
	Episodes []int  `json:"episodes"`
}

func (ExpectedTvEpisode) isExpected()          {}
func (ExpectedTvEpisode) ExpectedType() string { return "tv_episode" }

// SearchConstraints narrows candidate scoring: content-type-specific
// requirements such as mandatory audio languages.
type SearchConstraints struct {
	RequiredAudioLanguages []string `json:"required_audio_languages,omitempty"`
	MinSeeders             int      `json:"min_seeders,omitempty"`
	IdealSeeders           int      `json:"ideal_seeders,omitempty"`
	MinSizeBytes           int64    `json:"min_size_bytes,omitempty"`
	MaxSizeBytes           int64    `json:"max_size_bytes,omitempty"`
}

func (e ExpectedAlbum) MarshalJSON() ([]byte, error) {
	type alias ExpectedAlbum
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: "album", alias: alias(e)})
}

func (e ExpectedSingleTrack) MarshalJSON() ([]byte, error) {
	type alias ExpectedSingleTrack
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: "track", alias: alias(e)})
}

func (e ExpectedMovie) MarshalJSON() ([]byte, error) {
	type alias ExpectedMovie
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: "movie", alias: alias(e)})
}

func (e ExpectedTvEpisode) MarshalJSON() ([]byte, error) {
	type alias ExpectedTvEpisode
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: "tv_episode", alias: alias(e)})
}

// UnmarshalExpected decodes a tagged JSON envelope into the concrete
// Expected variant named by its "type" field. Returns nil, nil for an
// empty/absent payload.
func UnmarshalExpected(raw json.RawMessage) (Expected, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, fmt.Errorf("unmarshal expected: %w", err)
	}
	switch tagged.Type {
	case "album":
		var e ExpectedAlbum
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "track":
		var e ExpectedSingleTrack
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "movie":
		var e ExpectedMovie
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "tv_episode":
		var e ExpectedTvEpisode
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown expected type %q", tagged.Type)
	}
}

// UnmarshalJSON implements custom decoding so the Expected interface field
// round-trips through its tagged envelope.
func (q *QueryContext) UnmarshalJSON(data []byte) error {
	var aux struct {
		Tags              []string           `json:"tags"`
		Description       string             `json:"description"`
		Expected          json.RawMessage    `json:"expected,omitempty"`
		SearchConstraints *SearchConstraints `json:"search_constraints,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	expected, err := UnmarshalExpected(aux.Expected)
	if err != nil {
		return err
	}
	q.Tags = aux.Tags
	q.Description = aux.Description
	q.Expected = expected
	q.SearchConstraints = aux.SearchConstraints
	return nil
}
