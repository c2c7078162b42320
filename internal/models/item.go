package models

import (
	"fmt"
	"strings"
)

// MediaItem is the capability every browsable thing exposes, whatever its concrete type.
type MediaItem interface {
	DisplayTitle() string
	DisplaySubtitle() string
	Thumbnail() *Artwork
	IsAvailable() bool
}

// Playable is implemented by items a renderer can queue or start.
type Playable interface {
	MediaItem
	IsQueueable() bool
}

// Container is implemented by items that hold other items and can be paged through.
type Container interface {
	MediaItem
	NodeID() string
	Searchable() bool
}

var (
	_ Playable  = Item{}
	_ MediaItem = EmptyItem{}
	_ Container = CatalogNode{}
)

// Artwork references an image by remote URL or by a bundled asset name.
type Artwork struct {
	Location string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
}

// URL returns the remote location, or "" for bundled artwork.
func (a Artwork) URL() string {
	if strings.HasPrefix(a.Location, "http://") || strings.HasPrefix(a.Location, "https://") {
		return a.Location
	}
	return ""
}

// ItemMetadata carries the track-level tags reported by a catalog.
type ItemMetadata struct {
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
}

// ItemKind tags an [Item] with what it represents.
type ItemKind string

const (
	KindTrack     ItemKind = "track"
	KindAlbum     ItemKind = "album"
	KindArtist    ItemKind = "artist"
	KindPlaylist  ItemKind = "playlist"
	KindStation   ItemKind = "station"
	KindContainer ItemKind = "container"
	KindUnknown   ItemKind = "unknown"
)

// ParseItemKind maps a free-form type string onto a known kind.
func ParseItemKind(s string) ItemKind {
	switch ItemKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindTrack, "song":
		return KindTrack
	case KindAlbum:
		return KindAlbum
	case KindArtist:
		return KindArtist
	case KindPlaylist:
		return KindPlaylist
	case KindStation, "radio":
		return KindStation
	case KindContainer, "folder":
		return KindContainer
	default:
		return KindUnknown
	}
}

// IsContainer reports whether items of this kind can be browsed into.
func (k ItemKind) IsContainer() bool {
	switch k {
	case KindAlbum, KindArtist, KindPlaylist, KindContainer:
		return true
	default:
		return false
	}
}

// Item describes one entry of an [ItemPage].
type Item struct {
	ID         string        `json:"id"`
	Kind       ItemKind      `json:"kind"`
	Title      string        `json:"title"`
	Subtitle   string        `json:"subtitle,omitempty"`
	Artwork    *Artwork      `json:"thumbnail,omitempty"`
	Metadata   *ItemMetadata `json:"metadata,omitempty"`
	Available  bool          `json:"available"`
	Queueable  bool          `json:"queueable"`
	TypeString string        `json:"type,omitempty"`
}

func (i Item) DisplayTitle() string    { return i.Title }
func (i Item) DisplaySubtitle() string { return i.Subtitle }
func (i Item) Thumbnail() *Artwork     { return i.Artwork }
func (i Item) IsAvailable() bool       { return i.Available }
func (i Item) IsQueueable() bool       { return i.Available && i.Queueable }

// Label is the text used when an item has to be shown on one line.
func (i Item) Label() string {
	title := i.Title
	if title == "" && i.Metadata != nil {
		title = i.Metadata.Title
	}
	if i.Metadata != nil && i.Metadata.Artist != "" {
		return fmt.Sprintf("%s - %s", i.Metadata.Artist, title)
	}
	return title
}

// Validate checks that an item can be referenced by a device.
func (i Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item ID is required")
	}
	if i.Title == "" && (i.Metadata == nil || i.Metadata.Title == "") {
		return fmt.Errorf("item %s has no title", i.ID)
	}
	return nil
}

// EmptyItem stands in for an item that could not be resolved.
type EmptyItem struct{}

func (EmptyItem) DisplayTitle() string    { return "" }
func (EmptyItem) DisplaySubtitle() string { return "" }
func (EmptyItem) Thumbnail() *Artwork     { return nil }
func (EmptyItem) IsAvailable() bool       { return false }
