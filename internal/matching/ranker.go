package matching

import (
	"math"
	"regexp"
	"strings"
)

var (
	regionalMarkersRe  = regexp.MustCompile(`(?i)\b(?:bollywood|hindi|punjabi|tamil|telugu|marathi|bengali|gujarati|mein|hai|ko|ki|ka|se|yaad|piya|kya|tera|mera)\b`)
	officialChannelRe  = regexp.MustCompile(`(?i)official|music|records|vevo|topic|entertainment|films|studios|label`)
	officialTitleRe    = regexp.MustCompile(`(?i)official|music video`)
	channelDecorations = regexp.MustCompile(`(?i)\s*-\s*topic$|vevo$|\bofficial\b`)
)

// Breakdown is the itemized score of one candidate.
type Breakdown struct {
	Title      float64 `json:"title"`
	Artist     float64 `json:"artist"`
	Duration   float64 `json:"duration"`
	Popularity float64 `json:"popularity"`
	Official   float64 `json:"official"`
	Exact      float64 `json:"exact"`

	VersionPenalty   float64 `json:"version_penalty"`
	WordCountPenalty float64 `json:"word_count_penalty"`
	ShortPenalty     float64 `json:"short_penalty"`

	Threshold float64 `json:"threshold"`
	Rejected  bool    `json:"rejected"`
	Reason    string  `json:"reason,omitempty"`
	Total     float64 `json:"total"`
}

// Ranker scores candidates for one [Direction].
type Ranker struct {
	dir      Direction
	version  *regexp.Regexp
	nonMusic *regexp.Regexp
}

// NewRanker compiles the keyword lists of dir.
func NewRanker(dir Direction) *Ranker {
	return &Ranker{
		dir:      dir,
		version:  keywordPattern(dir.VersionKeywords),
		nonMusic: keywordPattern(dir.NonMusicKeywords),
	}
}

// Score returns the final score of c for src, 0 meaning rejected.
func (r *Ranker) Score(src SourceTrack, c Candidate, info ExtractedInfo) float64 {
	return r.Evaluate(src, c, info).Total
}

// Evaluate scores c for src and keeps every component.
func (r *Ranker) Evaluate(src SourceTrack, c Candidate, info ExtractedInfo) Breakdown {
	w, th := r.dir.Weights, r.dir.Thresholds
	var b Breakdown

	if reason := r.filter(src, c); reason != "" {
		b.Rejected, b.Reason = true, reason
		return b
	}

	candTitle := c.Title
	if r.dir.ExtractCandidateTitle {
		if main := ExtractSongInfo(c.Title).MainTitle; main != "" {
			candTitle = main
		}
	}

	b.Title = r.titleScore(src.Title, info, c.Title, candTitle)
	b.Threshold = r.minTitle(src.Title, info)
	if b.Title < b.Threshold {
		b.Rejected, b.Reason = true, "title below threshold"
		return b
	}

	b.Artist = r.artistScore(info.Artist, c)
	b.Duration = r.durationScore(src.DurationMS, c.DurationMS)
	b.Popularity = r.dir.Popularity.bonus(c.Popularity, w.PopularityCap)
	b.Official = r.officialBonus(info.Artist, c)

	if w.Exact > 0 && b.Title > th.ExactTitle && b.Artist > th.ExactArtist {
		b.Exact = w.Exact
	}
	if r.introducesVersion(src.Title, c.Title) {
		b.VersionPenalty = w.VersionPenalty
	}

	sourceWords := len(words(firstNonEmpty(info.MainTitle, src.Title)))
	candWords := len(words(candTitle))
	if sourceWords > 0 && candWords > 0 && abs(sourceWords-candWords) > 1 {
		b.WordCountPenalty = w.WordCountPenalty
	}

	if c.DurationMS > 0 && c.DurationMS < r.dir.ShortCandidateMS {
		b.ShortPenalty = w.ShortPenalty
	}

	total := b.Title*w.Title + b.Artist*w.Artist + b.Duration*w.Duration +
		b.Popularity + b.Official + b.Exact -
		b.VersionPenalty - b.WordCountPenalty - b.ShortPenalty
	b.Total = math.Max(0, math.Min(1, total))
	return b
}

// filter drops candidates that are not songs at all.
func (r *Ranker) filter(src SourceTrack, c Candidate) string {
	if c.DurationMS > 0 && c.DurationMS < r.dir.MinCandidateMS {
		return "too short"
	}
	if r.nonMusic != nil && r.nonMusic.MatchString(c.Title) && !r.nonMusic.MatchString(src.Title) {
		return "not music"
	}
	return ""
}

// titleScore takes the weighted best of the raw, main and song comparisons.
func (r *Ranker) titleScore(raw string, info ExtractedInfo, candidateTitles ...string) float64 {
	w := r.dir.Weights
	best := 0.0
	for _, ct := range candidateTitles {
		best = math.Max(best, w.RawTitle*Similarity(raw, ct))
		if info.MainTitle != "" {
			best = math.Max(best, w.MainTitle*Similarity(info.MainTitle, ct))
		}
		if info.Song != "" {
			best = math.Max(best, w.SongTitle*Similarity(info.Song, ct))
		}
	}
	return best
}

func (r *Ranker) minTitle(raw string, info ExtractedInfo) float64 {
	th := r.dir.Thresholds
	limit := th.MinTitle
	if hasNonASCII(raw) || regionalMarkersRe.MatchString(raw) {
		limit = math.Min(limit, th.Regional)
	}
	if n := runeLen(info.MainTitle); n > 0 && n <= th.ShortTitleRunes {
		limit = math.Min(limit, th.ShortTitle)
	}
	return limit
}

func (r *Ranker) artistScore(artist string, c Candidate) float64 {
	if artist == "" {
		return 0
	}

	best := 0.0
	for _, a := range c.Artists {
		best = math.Max(best, Similarity(artist, a))
	}
	if c.Channel != "" {
		best = math.Max(best, Similarity(artist, cleanChannel(c.Channel)))
	}
	if r.dir.Weights.ArtistInTitle > 0 {
		best = math.Max(best, r.dir.Weights.ArtistInTitle*Similarity(artist, c.Title))
	}
	return best
}

func (r *Ranker) durationScore(sourceMS, candidateMS int) float64 {
	if sourceMS <= 0 || candidateMS <= 0 {
		return r.dir.NeutralDuration
	}

	tolerance := math.Max(float64(r.dir.DurationFloorMS), r.dir.DurationRatio*float64(sourceMS))
	if tolerance <= 0 {
		return r.dir.NeutralDuration
	}
	return math.Max(0, 1-math.Abs(float64(sourceMS-candidateMS))/tolerance)
}

func (r *Ranker) officialBonus(artist string, c Candidate) float64 {
	w := r.dir.Weights
	channel := strings.ToLower(c.Channel)
	artistChannel := artist != "" && channel != "" && strings.Contains(channel, strings.ToLower(artist))

	switch {
	case c.Official || officialChannelRe.MatchString(channel) || artistChannel:
		return w.OfficialSource
	case officialTitleRe.MatchString(c.Title):
		return w.OfficialTitle
	default:
		return 0
	}
}

// introducesVersion reports whether the candidate names a version (cover, remix, ...) the source does not.
func (r *Ranker) introducesVersion(source, candidate string) bool {
	if r.version == nil {
		return false
	}

	have := make(map[string]bool)
	for _, k := range r.version.FindAllString(source, -1) {
		have[strings.ToLower(k)] = true
	}
	for _, k := range r.version.FindAllString(candidate, -1) {
		if !have[strings.ToLower(k)] {
			return true
		}
	}
	return false
}

func keywordPattern(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return nil
	}

	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(k))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func cleanChannel(channel string) string {
	return collapseSpaces(channelDecorations.ReplaceAllString(channel, " "))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
