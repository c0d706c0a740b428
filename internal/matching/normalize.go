package matching

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	bracketRe = regexp.MustCompile(`\s*[\(\[【（][^\)\]】）]*[\)\]】）]`)
	noiseRe   = regexp.MustCompile(`(?i)\b(?:official\s+(?:music\s+|lyrics?\s+)?(?:video|audio)|(?:music|lyrics?|lyrical)\s+video|full\s+(?:video\s+)?song|video\s+song|official|video|lyrics?|lyrical|audio|hd|4k|hq|mv|latest|remastered|remaster|remix|cover|karaoke|visualizer)\b`)
	yearRe    = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	spaceRe   = regexp.MustCompile(`\s+`)

	separatorRunRe  = regexp.MustCompile(`\s*[-|:–—](?:\s*[-|:–—])+\s*`)
	edgeSeparatorRe = regexp.MustCompile(`^[\s\-|:–—]+|[\s\-|:–—]+$`)
	segmentEndRe    = regexp.MustCompile(`\s+[-–—|]\s+`)
	looseSegmentRe  = regexp.MustCompile(`\s*[|\-–—]\s*`)
	boilerplateRe   = regexp.MustCompile(`(?i)\b(?:official|subscribe|channel|records|vevo|topic|music|entertainment|films|studios|label)\b`)
)

// splitPattern recognizes a two-sided title layout. artist and song are submatch indexes.
type splitPattern struct {
	name   string
	re     *regexp.Regexp
	artist int
	song   int
}

// Order matters: the three-part layout would otherwise always be claimed by "Artist - Song".
var splitPatterns = []splitPattern{
	{"movie-song-artist", regexp.MustCompile(`^(.+?)\s+[-–—]\s+(.+?)\s+\|\s+(.+)$`), 3, 2},
	{"artist-song", regexp.MustCompile(`^(.+?)\s+[-–—]\s+(.+)$`), 1, 2},
	{"song-pipe-artist", regexp.MustCompile(`^(.+?)\s+\|\s+(.+)$`), 2, 1},
	{"artist-colon-song", regexp.MustCompile(`^(.+?):\s+(.+)$`), 1, 2},
	{"song-by-artist", regexp.MustCompile(`(?i)^(.+?)\s+by\s+(.+)$`), 2, 1},
}

// CleanTitle strips bracketed annotations, noise words and years from a raw title.
func CleanTitle(raw string) string {
	s := bracketRe.ReplaceAllString(raw, " ")
	s = noiseRe.ReplaceAllString(s, " ")
	s = yearRe.ReplaceAllString(s, " ")
	return tidy(s)
}

// ExtractSongInfo recovers artist, song and main title from a free-form title.
func ExtractSongInfo(raw string) ExtractedInfo {
	title := collapseSpaces(raw)
	if title == "" {
		return ExtractedInfo{}
	}

	cleaned := CleanTitle(title)
	if info, ok := splitStructured(cleaned); ok {
		return info
	}
	if info, ok := splitLoose(cleaned); ok {
		return info
	}
	if runeLen(cleaned) >= 2 {
		return ExtractedInfo{MainTitle: cleaned}
	}
	return ExtractedInfo{MainTitle: title}
}

func splitStructured(cleaned string) (ExtractedInfo, bool) {
	for _, p := range splitPatterns {
		m := p.re.FindStringSubmatch(cleaned)
		if m == nil {
			continue
		}

		artist := firstSegment(m[p.artist])
		song := firstSegment(m[p.song])
		if runeLen(artist) >= 2 && runeLen(song) >= 2 {
			return ExtractedInfo{Artist: artist, Song: song, MainTitle: song}, true
		}
	}
	return ExtractedInfo{}, false
}

func splitLoose(cleaned string) (ExtractedInfo, bool) {
	parts := looseSegmentRe.Split(cleaned, -1)
	if len(parts) < 2 {
		return ExtractedInfo{}, false
	}

	for i, part := range parts {
		part = strings.TrimSpace(part)
		if runeLen(part) < 2 {
			continue
		}

		info := ExtractedInfo{MainTitle: part}
		if i+1 < len(parts) {
			next := strings.TrimSpace(parts[i+1])
			if runeLen(next) >= 2 && !boilerplateRe.MatchString(next) {
				info.Artist, info.Song = next, part
			}
		}
		return info, true
	}
	return ExtractedInfo{}, false
}

// firstSegment keeps the text before any further spaced separator.
func firstSegment(s string) string {
	if loc := segmentEndRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(s)
}

// tidy collapses whitespace and the separator debris left behind by removals.
func tidy(s string) string {
	s = collapseSpaces(s)
	s = separatorRunRe.ReplaceAllStringFunc(s, func(run string) string {
		last, _ := utf8.DecodeLastRuneInString(strings.TrimSpace(run))
		if last == ':' {
			return ": "
		}
		return " " + string(last) + " "
	})
	s = edgeSeparatorRe.ReplaceAllString(s, "")
	return collapseSpaces(s)
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func hasNonASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return true
		}
	}
	return false
}
