package matching

import "testing"

func TestCleanTitle(t *testing.T) {
	tc := []struct {
		name  string
		title string
		want  string
	}{
		{"bracketed annotation", "Ed Sheeran - Shape of You (Official Music Video)", "Ed Sheeran - Shape of You"},
		{"quality marker and year", "Tum Hi Ho [HD] 2013", "Tum Hi Ho"},
		{"dangling separators", "Song Name | Official Video | Lyrics", "Song Name"},
		{"already clean", "Blinding Lights", "Blinding Lights"},
		{"only noise", "Official Video", ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTitle(tt.title); got != tt.want {
				t.Errorf("CleanTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestExtractSongInfo(t *testing.T) {
	tc := []struct {
		name  string
		title string
		want  ExtractedInfo
	}{
		{
			name:  "empty",
			title: "",
			want:  ExtractedInfo{},
		},
		{
			name:  "whitespace",
			title: "   ",
			want:  ExtractedInfo{},
		},
		{
			name:  "artist dash song",
			title: "Ed Sheeran - Shape of You (Official Music Video)",
			want:  ExtractedInfo{Artist: "Ed Sheeran", Song: "Shape of You", MainTitle: "Shape of You"},
		},
		{
			name:  "song pipe artist",
			title: "Shape of You | Ed Sheeran",
			want:  ExtractedInfo{Artist: "Ed Sheeran", Song: "Shape of You", MainTitle: "Shape of You"},
		},
		{
			name:  "artist colon song",
			title: "Ed Sheeran: Shape of You",
			want:  ExtractedInfo{Artist: "Ed Sheeran", Song: "Shape of You", MainTitle: "Shape of You"},
		},
		{
			name:  "song by artist",
			title: "Shape of You by Ed Sheeran",
			want:  ExtractedInfo{Artist: "Ed Sheeran", Song: "Shape of You", MainTitle: "Shape of You"},
		},
		{
			name:  "movie song artist",
			title: "Kalank - Title Track | Arijit Singh",
			want:  ExtractedInfo{Artist: "Arijit Singh", Song: "Title Track", MainTitle: "Title Track"},
		},
		{
			name:  "noise between separators",
			title: "Pillu - Official Video | Sanju Rathod | G-SPXRK",
			want:  ExtractedInfo{Artist: "Sanju Rathod", Song: "Pillu", MainTitle: "Pillu"},
		},
		{
			name:  "unspaced separator",
			title: "Pillu-Sanju Rathod",
			want:  ExtractedInfo{Artist: "Sanju Rathod", Song: "Pillu", MainTitle: "Pillu"},
		},
		{
			name:  "unspaced separator with boilerplate",
			title: "Pillu-T Series Records",
			want:  ExtractedInfo{MainTitle: "Pillu"},
		},
		{
			name:  "no structure",
			title: "Despacito",
			want:  ExtractedInfo{MainTitle: "Despacito"},
		},
		{
			name:  "cleaning empties the title",
			title: "Official Video",
			want:  ExtractedInfo{MainTitle: "Official Video"},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractSongInfo(tt.title)
			if got != tt.want {
				t.Errorf("ExtractSongInfo(%q) = %+v, want %+v", tt.title, got, tt.want)
			}
		})
	}

	t.Run("main title always set for non-empty titles", func(t *testing.T) {
		for _, title := range []string{"a b", "x", "--", "|| ||", "(Official)", "तेरा यार हूँ मैं", "2020"} {
			if got := ExtractSongInfo(title); got.MainTitle == "" {
				t.Errorf("ExtractSongInfo(%q) left MainTitle empty", title)
			}
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		title := "Arijit Singh - Tum Hi Ho | Aashiqui 2 (Lyrics)"
		first := ExtractSongInfo(title)
		for range 5 {
			if got := ExtractSongInfo(title); got != first {
				t.Fatalf("ExtractSongInfo changed between calls: %+v vs %+v", got, first)
			}
		}
	})
}

func TestAnalyze(t *testing.T) {
	t.Run("structured artist wins", func(t *testing.T) {
		got := Analyze(SourceTrack{Title: "Yesterday - Remastered 2009", Artist: "The Beatles, Someone Else"})
		want := ExtractedInfo{Artist: "The Beatles", Song: "Yesterday", MainTitle: "Yesterday"}
		if got != want {
			t.Errorf("Analyze() = %+v, want %+v", got, want)
		}
	})

	t.Run("free-form title is extracted", func(t *testing.T) {
		got := Analyze(SourceTrack{Title: "Ed Sheeran - Shape of You"})
		if got.Artist != "Ed Sheeran" || got.Song != "Shape of You" {
			t.Errorf("Analyze() = %+v", got)
		}
	})

	t.Run("empty title", func(t *testing.T) {
		if got := Analyze(SourceTrack{Artist: "Ed Sheeran"}); got != (ExtractedInfo{}) {
			t.Errorf("Analyze() = %+v, want zero value", got)
		}
	})
}

func TestFromVideo(t *testing.T) {
	tc := []struct {
		name    string
		title   string
		channel string
		artist  string
	}{
		{name: "title names the artist", title: "Ed Sheeran - Shape of You (Official Video)", channel: "Ed Sheeran", artist: ""},
		{name: "topic channel", title: "Shape of You", channel: "Ed Sheeran - Topic", artist: "Ed Sheeran"},
		{name: "vevo channel", title: "Hello", channel: "AdeleVEVO", artist: "Adele"},
		{name: "generic channel", title: "Shape of You", channel: "Various Artists", artist: ""},
		{name: "no channel", title: "Shape of You", channel: "", artist: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			src := FromVideo("vid", tt.title, tt.channel, 1000)
			if src.Artist != tt.artist {
				t.Errorf("FromVideo(%q, %q).Artist = %q, want %q", tt.title, tt.channel, src.Artist, tt.artist)
			}
			if src.Channel != tt.channel || src.ID != "vid" || src.DurationMS != 1000 {
				t.Errorf("FromVideo() lost fields: %+v", src)
			}
		})
	}
}
