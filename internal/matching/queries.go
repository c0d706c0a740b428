package matching

import (
	"regexp"
	"sort"
	"strings"
)

const (
	maxQuotedRunes   = 15
	maxFragments     = 3
	minFragmentRunes = 5
)

var (
	strongSeparatorRe = regexp.MustCompile(`\|\||&&|--|\s+\|\s+`)
	fragmentNoiseRe   = regexp.MustCompile(`(?i)\b(?:official|video|lyrics?|music|mv|hd|4k|hq|audio|latest|song|hindi|english|(?:19|20)\d{2})\b`)
	regionalWordsRe   = regexp.MustCompile(`(?i)\b(?:mein|hai|ko|ki|ka|se|aasman|badal|yaad|piya|kya|tera|mera)\b`)

	priorityWordsRe = regexp.MustCompile(`(?i)\b(?:yaad|piya|aane|lagi|tera|mera|hai|mein|ko|ki|ka|se|tum|hum|dil|ishq|pyar|saath|zindagi)\b`)
	fourDigitsRe    = regexp.MustCompile(`\d{4}`)
	channelWordsRe  = regexp.MustCompile(`(?i)channel|subscribe|like|share|comment`)
	titleCaseRe     = regexp.MustCompile(`^[A-Z][a-z]+ [A-Z][a-z]+`)
)

// BuildQueries returns the ordered, de-duplicated search strings for src.
//
// Earlier queries are the ones most likely to succeed; the [Engine] searches them in order and
// stops early, so the order is part of the contract.
func BuildQueries(src SourceTrack, dir Direction) []string {
	return buildQueries(src, Analyze(src), dir)
}

func buildQueries(src SourceTrack, info ExtractedInfo, dir Direction) []string {
	raw := collapseSpaces(src.Title)
	if raw == "" {
		return nil
	}

	var qs queryList
	song, artist := info.Song, info.Artist

	if runeLen(song) >= 3 && runeLen(artist) >= 3 && dir.structured != nil {
		qs.add(dir.structured(song, artist, raw)...)
	}

	if song != "" && artist != "" {
		qs.add(song+" "+artist, artist+" "+song)
		if album := collapseSpaces(src.Album); runeLen(album) > 3 && !strings.EqualFold(album, song) {
			qs.add(song + " " + artist + " " + album)
		}
	}

	for _, f := range fragments(raw) {
		qs.add(quote(f), f)
	}

	if main := info.MainTitle; runeLen(main) > 1 {
		if runeLen(main) <= maxQuotedRunes {
			qs.add(quote(main))
		}
		qs.add(main)

		if hasNonASCII(main) || regionalWordsRe.MatchString(main) {
			for _, q := range dir.RegionalQualifiers {
				qs.add(main + " " + q)
			}
		}
	}

	if runeLen(artist) > 2 && dir.artistOnly != nil {
		qs.add(dir.artistOnly(artist)...)
	}

	if cleaned := CleanTitle(raw); runeLen(cleaned) > 2 && cleaned != info.MainTitle {
		qs.add(cleaned, quote(cleaned))
	}

	qs.add(raw)

	if dir.MaxQueries > 0 && len(qs.items) > dir.MaxQueries {
		return qs.items[:dir.MaxQueries]
	}
	return qs.items
}

// fragments splits titles that bundle several songs (medleys, mashups) and keeps the most
// searchable pieces. A title without strong separators yields nothing.
func fragments(raw string) []string {
	parts := strongSeparatorRe.Split(raw, -1)
	if len(parts) < 2 {
		return nil
	}

	type ranked struct {
		text     string
		priority int
	}

	var candidates []ranked
	for _, p := range parts {
		p = tidy(fragmentNoiseRe.ReplaceAllString(p, " "))
		if runeLen(p) < minFragmentRunes {
			continue
		}
		candidates = append(candidates, ranked{p, QueryPriority(p)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority > candidates[j].priority
	})

	out := make([]string, 0, maxFragments)
	for i := 0; i < len(candidates) && i < maxFragments; i++ {
		out = append(out, candidates[i].text)
	}
	return out
}

// QueryPriority estimates how likely a fragment is to find results. Higher is better.
func QueryPriority(q string) int {
	score := 0

	switch n := runeLen(q); {
	case n >= 5 && n <= 25:
		score += 10
	case n <= 40:
		score += 5
	}

	if priorityWordsRe.MatchString(q) {
		score += 15
	}
	if len(strings.Fields(q)) > 6 {
		score -= 5
	}
	if fourDigitsRe.MatchString(q) {
		score -= 3
	}
	if channelWordsRe.MatchString(q) {
		score -= 10
	}
	if titleCaseRe.MatchString(q) {
		score += 5
	}
	return score
}

func spotifyStructured(song, artist, _ string) []string {
	return []string{
		"track:" + quote(song) + " artist:" + quote(artist),
		quote(song) + " " + quote(artist),
	}
}

func spotifyArtistOnly(artist string) []string {
	return []string{"artist:" + quote(artist), artist}
}

// youtubeStructured leads with an exact phrase for titles that full-text search tends to scatter.
func youtubeStructured(song, artist, raw string) []string {
	var qs []string
	if hasNonASCII(raw) || len(strings.Fields(song)) <= 2 {
		qs = append(qs, quote(song)+" "+artist)
	}
	return append(qs, song+" "+artist+" official", song+" "+artist+" music video")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}

type queryList struct {
	items []string
	seen  map[string]struct{}
}

func (l *queryList) add(qs ...string) {
	if l.seen == nil {
		l.seen = make(map[string]struct{})
	}
	for _, q := range qs {
		q = strings.TrimSpace(q)
		if runeLen(q) <= 1 {
			continue
		}
		if _, ok := l.seen[q]; ok {
			continue
		}
		l.seen[q] = struct{}{}
		l.items = append(l.items, q)
	}
}
