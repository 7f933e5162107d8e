// Package track provides the Track domain entity.
package track

import "time"

// Track represents a playable sound from the marketplace catalog.
type Track struct {
	ID          string        // Catalog sound ID
	Title       string        // Display title
	Artist      string        // Artist display name
	AudioURL    string        // Primary audio URL (may be empty)
	FileURL     string        // Uploaded file URL (may be empty)
	PreviewURL  string        // Dedicated preview clip URL (may be empty)
	IsFree      bool          // No purchase required
	IsPurchased bool          // Current viewer owns full-access rights
	Price       float64       // Price in FCFA, ignored when IsFree
	Duration    time.Duration // Known duration (zero if unknown)
}

// IsFullyPlayable reports whether the track plays without the preview cap.
func (t *Track) IsFullyPlayable() bool {
	return t.IsFree || t.IsPurchased || t.Price == 0
}

// HasSource reports whether any URL candidate is set.
func (t *Track) HasSource() bool {
	return t.AudioURL != "" || t.FileURL != "" || t.PreviewURL != ""
}

// DisplayName returns "Artist - Title", or just the title when the artist is unknown.
func (t *Track) DisplayName() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}
