package loopback

import (
	"fmt"

	"github.com/desertthunder/renderkit/internal/models"
)

// Demo node IDs.
const (
	RootNode      = "root"
	AlbumsNode    = "albums"
	PlaylistsNode = "playlists"
	LibraryNode   = "library"
)

// Demo renderer IDs.
const (
	LivingRoomID = "RINCON_000E58LR0001"
	OfficeID     = "RINCON_000E58OF0002"
	BedroomID    = "RINCON_000E58BD0003"
)

// Fixture is a ready-made catalog and device pair.
type Fixture struct {
	Catalog *Catalog
	Device  *Device
}

type demoAlbum struct {
	id, title, artist string
	tracks            []string
}

var demoAlbums = []demoAlbum{
	{"alb-kind-of-blue", "Kind of Blue", "Miles Davis", []string{"So What", "Freddie Freeloader", "Blue in Green", "All Blues", "Flamenco Sketches"}},
	{"alb-a-love-supreme", "A Love Supreme", "John Coltrane", []string{"Acknowledgement", "Resolution", "Pursuance", "Psalm"}},
	{"alb-rumours", "Rumours", "Fleetwood Mac", []string{"Second Hand News", "Dreams", "Never Going Back Again", "Don't Stop", "Go Your Own Way", "Songbird"}},
	{"alb-remain-in-light", "Remain in Light", "Talking Heads", []string{"Born Under Punches", "Crosseyed and Painless", "The Great Curve", "Once in a Lifetime"}},
	{"alb-blue-train", "Blue Train", "John Coltrane", []string{"Blue Train", "Moment's Notice", "Locomotion", "I'm Old Fashioned", "Lazy Bird"}},
}

// Demo builds the fixture used by the loopback backend: a small music library and three
// renderers, two of them grouped.
func Demo() Fixture {
	c := NewCatalog()
	criteria := []models.SearchCriterion{ByTitle, ByArtist, ByAlbum}

	var albums, all []models.Item
	for _, a := range demoAlbums {
		albumItem := models.Item{
			ID:        a.id,
			Kind:      models.KindAlbum,
			Title:     a.title,
			Subtitle:  a.artist,
			Artwork:   &models.Artwork{Name: a.id},
			Metadata:  &models.ItemMetadata{Title: a.title, Artist: a.artist, Album: a.title},
			Available: true,
			Queueable: true,
		}
		albums = append(albums, albumItem)

		var tracks []models.Item
		for i, title := range a.tracks {
			t := models.Item{
				ID:        fmt.Sprintf("%s-%02d", a.id, i+1),
				Kind:      models.KindTrack,
				Title:     title,
				Subtitle:  a.artist,
				Artwork:   albumItem.Artwork,
				Metadata:  &models.ItemMetadata{Title: title, Artist: a.artist, Album: a.title},
				Available: true,
				Queueable: true,
			}
			tracks = append(tracks, t)
		}
		all = append(all, tracks...)

		node := models.NodeFromItem(albumItem)
		node.SearchCriteria = criteria
		node.IsActiveContainer = models.False
		c.AddNode(node, tracks...)
	}

	unavailable := all[len(all)-1]
	unavailable.ID = "trk-region-locked"
	unavailable.Title = "Region Locked Bonus Track"
	unavailable.Subtitle = "Various Artists"
	unavailable.Metadata = &models.ItemMetadata{Title: unavailable.Title, Artist: "Various Artists"}
	unavailable.Available = false

	c.AddNode(models.CatalogNode{
		ID:                RootNode,
		Title:             "Music",
		IsActiveContainer: models.False,
	},
		models.Item{ID: AlbumsNode, Kind: models.KindContainer, Title: "Albums", Available: true},
		models.Item{ID: LibraryNode, Kind: models.KindContainer, Title: "All Tracks", Available: true},
		models.Item{ID: PlaylistsNode, Kind: models.KindContainer, Title: "Playlists", Available: true},
	)
	c.AddNode(models.CatalogNode{
		ID:             AlbumsNode,
		Title:          "Albums",
		SearchCriteria: criteria,
	}, albums...)
	c.AddNode(models.CatalogNode{
		ID:                  LibraryNode,
		Title:               "All Tracks",
		SearchCriteria:      criteria,
		SupportsItemsHiding: true,
	}, append(all, unavailable)...)
	c.AddNode(models.CatalogNode{
		ID:    PlaylistsNode,
		Title: "Playlists",
	},
		models.Item{ID: "pl-late-night", Kind: models.KindPlaylist, Title: "Late Night Jazz", Available: true, Queueable: true},
		models.Item{ID: "pl-radio", Kind: models.KindStation, Title: "Radio Paradise", Available: true, Queueable: false},
	)

	d := NewDevice()

	lr := demoRenderer(LivingRoomID, "Living Room", "Sonos Arc")
	of := demoRenderer(OfficeID, "Office", "Sonos One")
	bd := demoRenderer(BedroomID, "Bedroom", "Sonos Era 100")
	bd.PowerState = models.PowerStandby

	g := models.Group{ID: "group-living-office", Name: "Living Room + Office", Members: []models.GroupMember{
		{ID: LivingRoomID, Name: "Living Room", Role: models.RoleLeader},
		{ID: OfficeID, Name: "Office", Role: models.RoleMember},
	}}
	for _, s := range []*models.RendererState{&lr, &of} {
		gc := g.Clone()
		s.Group = &gc
		s.ZoneVolume = 20
	}

	d.AddRenderer(lr)
	d.AddRenderer(of)
	d.AddRenderer(bd)
	return Fixture{Catalog: c, Device: d}
}

func demoRenderer(id, name, model string) models.RendererState {
	s := models.NewRendererState(id, name, model)
	s.Address = "loopback://" + id
	s.AvailableActions = models.AllPlaybackActions()
	s.SpeakerSettings = []models.SpeakerSetting{
		{ID: "bass", Name: "Bass", Kind: models.SettingNumber, Min: -10, Max: 10, Step: 1},
		{ID: "treble", Name: "Treble", Kind: models.SettingNumber, Min: -10, Max: 10, Step: 1},
		{ID: "loudness", Name: "Loudness", Kind: models.SettingBool, Bool: true},
		{ID: "eq", Name: "Equalizer", Kind: models.SettingEnum, Enum: "flat", Cases: []string{"flat", "speech", "night"}},
	}
	s.Revision = 1
	return s
}
