package playlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/kamerplay/internal/domain/track"
)

func threeTracks() *Playlist {
	return &Playlist{Tracks: []track.Track{
		{ID: "t1", Duration: 2 * time.Minute},
		{ID: "t2", Duration: 3 * time.Minute},
		{ID: "t3"},
	}}
}

func TestPlaylist_TrackIDs(t *testing.T) {
	tests := []struct {
		name     string
		tracks   []track.Track
		expected []string
	}{
		{
			name:     "empty playlist",
			tracks:   []track.Track{},
			expected: []string{},
		},
		{
			name:     "duplicates kept in order",
			tracks:   []track.Track{{ID: "a"}, {ID: "b"}, {ID: "a"}},
			expected: []string{"a", "b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Playlist{Tracks: tt.tracks}
			assert.Equal(t, tt.expected, p.TrackIDs())
		})
	}
}

func TestPlaylist_IndexOf(t *testing.T) {
	p := threeTracks()
	assert.Equal(t, 1, p.IndexOf("t2"))
	assert.Equal(t, -1, p.IndexOf("missing"))
}

func TestPlaylist_TotalDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, threeTracks().TotalDuration())
	assert.Equal(t, time.Duration(0), (&Playlist{}).TotalDuration())
}

func TestPlaylist_NextIndex(t *testing.T) {
	p := threeTracks()
	assert.Equal(t, 0, p.NextIndex(2), "wraps to the first track")
	assert.Equal(t, 2, p.NextIndex(1))
	assert.Equal(t, 0, p.NextIndex(-1))
	assert.Equal(t, -1, (&Playlist{}).NextIndex(0))
}

func TestPlaylist_PreviousIndex(t *testing.T) {
	p := threeTracks()
	assert.Equal(t, 2, p.PreviousIndex(0), "wraps to the last track")
	assert.Equal(t, 0, p.PreviousIndex(1))
	assert.Equal(t, 2, p.PreviousIndex(-1))
	assert.Equal(t, -1, (&Playlist{}).PreviousIndex(0))
}

func TestPlaylist_NextClosure(t *testing.T) {
	p := threeTracks()
	for start := 0; start < p.Len(); start++ {
		idx := start
		for i := 0; i < p.Len(); i++ {
			idx = p.NextIndex(idx)
		}
		assert.Equal(t, start, idx)
		assert.Equal(t, start, p.PreviousIndex(p.NextIndex(start)))
	}
}
