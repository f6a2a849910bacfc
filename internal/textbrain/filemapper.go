package textbrain

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

var audioExtensions = map[string]struct{}{
	".flac": {}, ".mp3": {}, ".m4a": {}, ".aac": {}, ".ogg": {}, ".wav": {}, ".alac": {},
}

var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".ts": {}, ".m2ts": {}, ".webm": {},
}

var trackNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d{1,3})[\s._-]`),         // leading NN
	regexp.MustCompile(`(?i)D\d+T(\d{1,3})`),        // D1T01
	regexp.MustCompile(`\((\d{1,3})\)`),              // (NN)
	regexp.MustCompile(`(?i)Track[\s._-]*(\d{1,3})`), // Track NN
}

var episodePattern = regexp.MustCompile(`(?i)S(\d{1,2})E(\d{1,3})`)
var looseEpisodePattern = regexp.MustCompile(`(?i)x(\d{1,3})`)
var seasonWordPattern = regexp.MustCompile(`(?i)season[\s._-]*(\d{1,2})`)
var episodeWordPattern = regexp.MustCompile(`(?i)episode[\s._-]*(\d{1,3})`)

// MapFiles produces FileMappings between torrent-internal file paths and
// the ticket's expected items, per SPEC_FULL.md §4.3's
// "File-to-item mapping" algorithm.
func MapFiles(expected domain.Expected, files []domain.TorrentFile) []domain.FileMapping {
	switch e := expected.(type) {
	case domain.ExpectedAlbum:
		return mapAlbum(e, files)
	case domain.ExpectedSingleTrack:
		return mapSingleTrack(e, files)
	case domain.ExpectedMovie:
		return mapMovie(e, files)
	case domain.ExpectedTvEpisode:
		return mapTvEpisode(e, files)
	default:
		return nil
	}
}

func filterByExt(files []domain.TorrentFile, exts map[string]struct{}) []domain.TorrentFile {
	out := make([]domain.TorrentFile, 0, len(files))
	for _, f := range files {
		ext := strings.ToLower(extOf(f.Path))
		if _, ok := exts[ext]; ok {
			out = append(out, f)
		}
	}
	return out
}

func extOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return path[idx:]
}

func baseOf(path string) string {
	idx := strings.LastIndexAny(path, "/\\")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

func extractTrackNumber(fileName string) (int, bool) {
	for _, pattern := range trackNumberPatterns {
		m := pattern.FindStringSubmatch(fileName)
		if len(m) >= 2 {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func keywordOverlap(a, b string) float64 {
	aWords := tokenize(a)
	bWords := tokenize(b)
	if len(aWords) == 0 {
		return 0
	}
	bSet := make(map[string]struct{}, len(bWords))
	for _, w := range bWords {
		bSet[w] = struct{}{}
	}
	var hits int
	for _, w := range aWords {
		if _, ok := bSet[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(aWords))
}

func tokenize(s string) []string {
	return regexp.MustCompile(`[a-z0-9]+`).FindAllString(strings.ToLower(s), -1)
}

func mapAlbum(album domain.ExpectedAlbum, files []domain.TorrentFile) []domain.FileMapping {
	audio := filterByExt(files, audioExtensions)
	mappings := make([]domain.FileMapping, 0, len(album.Tracks))

	for _, track := range album.Tracks {
		var best domain.TorrentFile
		var bestScore float64
		found := false
		for _, f := range audio {
			fileName := baseOf(f.Path)
			score := 0.0
			if n, ok := extractTrackNumber(fileName); ok && n == track.Number {
				score += 0.4
			}
			score += 0.6 * keywordOverlap(track.Title, fileName)
			if !found || score > bestScore {
				best, bestScore, found = f, score, true
			}
		}
		if found && bestScore > 0 {
			mappings = append(mappings, domain.FileMapping{
				FilePath:   best.Path,
				ItemID:     strconv.Itoa(track.Number),
				Confidence: clamp01(bestScore),
			})
		}
	}
	return mappings
}

func mapSingleTrack(track domain.ExpectedSingleTrack, files []domain.TorrentFile) []domain.FileMapping {
	audio := filterByExt(files, audioExtensions)
	if len(audio) == 0 {
		return nil
	}
	var best domain.TorrentFile
	var bestScore float64
	for i, f := range audio {
		score := keywordOverlap(track.Title, baseOf(f.Path))
		if i == 0 || score > bestScore {
			best, bestScore = f, score
		}
	}
	return []domain.FileMapping{{FilePath: best.Path, ItemID: "track", Confidence: clamp01(bestScore)}}
}

func mapMovie(movie domain.ExpectedMovie, files []domain.TorrentFile) []domain.FileMapping {
	video := filterByExt(files, videoExtensions)
	if len(video) == 0 {
		return nil
	}
	sort.Slice(video, func(i, j int) bool { return video[i].Length > video[j].Length })
	best := video[0]

	confidence := 0.6
	if movie.Year != nil {
		yearStr := strconv.Itoa(*movie.Year)
		for _, f := range video {
			if strings.Contains(f.Path, yearStr) {
				best = f
				confidence = 0.85
				break
			}
		}
	}
	return []domain.FileMapping{{FilePath: best.Path, ItemID: "movie", Confidence: confidence}}
}

func mapTvEpisode(tv domain.ExpectedTvEpisode, files []domain.TorrentFile) []domain.FileMapping {
	video := filterByExt(files, videoExtensions)
	mappings := make([]domain.FileMapping, 0, len(tv.Episodes))

	for _, ep := range tv.Episodes {
		var best domain.TorrentFile
		found := false
		for _, f := range video {
			if matchesEpisode(f.Path, tv.Season, ep) {
				best, found = f, true
				break
			}
		}
		if found {
			mappings = append(mappings, domain.FileMapping{
				FilePath:   best.Path,
				ItemID:     "s" + strconv.Itoa(tv.Season) + "e" + strconv.Itoa(ep),
				Confidence: 0.9,
			})
		}
	}
	return mappings
}

func matchesEpisode(path string, season, episode int) bool {
	if m := episodePattern.FindStringSubmatch(path); len(m) == 3 {
		s, _ := strconv.Atoi(m[1])
		e, _ := strconv.Atoi(m[2])
		return s == season && e == episode
	}
	if m := looseEpisodePattern.FindStringSubmatch(path); len(m) == 2 {
		e, _ := strconv.Atoi(m[1])
		if e == episode {
			return true
		}
	}
	seasonMatch := seasonWordPattern.FindStringSubmatch(path)
	episodeMatch := episodeWordPattern.FindStringSubmatch(path)
	if len(seasonMatch) == 2 && len(episodeMatch) == 2 {
		s, _ := strconv.Atoi(seasonMatch[1])
		e, _ := strconv.Atoi(episodeMatch[1])
		return s == season && e == episode
	}
	return false
}
