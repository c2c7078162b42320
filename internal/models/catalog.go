package models

import (
	"fmt"
	"math"
)

// SearchCriterion names one way a catalog node can be searched (by title, by artist, ...).
//
// Criteria compare by value.
type SearchCriterion struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewSearchCriterion builds a criterion whose ID is its name.
func NewSearchCriterion(name string) SearchCriterion {
	return SearchCriterion{ID: name, Name: name}
}

// Key returns the identifier used for lookups, falling back to the name.
func (c SearchCriterion) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Name
}

// Tristate is a boolean that may not be known yet.
type Tristate int

const (
	Unknown Tristate = iota
	True
	False
)

// TristateOf converts a known boolean.
func TristateOf(b bool) Tristate {
	if b {
		return True
	}
	return False
}

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (t Tristate) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (t *Tristate) UnmarshalText(b []byte) error {
	switch string(b) {
	case "true":
		*t = True
	case "false":
		*t = False
	case "", "unknown", "null":
		*t = Unknown
	default:
		return fmt.Errorf("invalid tristate %q", string(b))
	}
	return nil
}

// CatalogNode is a browsable location in a remote catalog: a folder, playlist or search root.
type CatalogNode struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	Subtitle            string            `json:"subtitle,omitempty"`
	Artwork             *Artwork          `json:"thumbnail,omitempty"`
	SearchCriteria      []SearchCriterion `json:"searchCriteria,omitempty"`
	IsActiveContainer   Tristate          `json:"isActiveContainer"`
	SupportsItemsHiding bool              `json:"supportsItemsHiding"`
	Unavailable         bool              `json:"unavailable,omitempty"`
}

func (n CatalogNode) DisplayTitle() string    { return n.Title }
func (n CatalogNode) DisplaySubtitle() string { return n.Subtitle }
func (n CatalogNode) Thumbnail() *Artwork     { return n.Artwork }
func (n CatalogNode) IsAvailable() bool       { return !n.Unavailable }
func (n CatalogNode) NodeID() string          { return n.ID }

// Searchable reports whether at least one search criterion is configured.
func (n CatalogNode) Searchable() bool {
	return len(n.SearchCriteria) > 0
}

// Criterion looks up a configured criterion by key or name.
func (n CatalogNode) Criterion(key string) (SearchCriterion, bool) {
	for _, c := range n.SearchCriteria {
		if c.Key() == key || c.Name == key {
			return c, true
		}
	}
	return SearchCriterion{}, false
}

// HasCriterion reports whether c is one of the node's criteria.
func (n CatalogNode) HasCriterion(c SearchCriterion) bool {
	for _, existing := range n.SearchCriteria {
		if existing == c {
			return true
		}
	}
	return false
}

// NodeFromItem turns a container item into a node that can be browsed.
func NodeFromItem(i Item) CatalogNode {
	return CatalogNode{
		ID:       i.ID,
		Title:    i.Title,
		Subtitle: i.Subtitle,
		Artwork:  i.Artwork,
	}
}

// Validate checks that the node can be used with a catalog source.
func (n CatalogNode) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node ID is required")
	}
	seen := make(map[SearchCriterion]bool, len(n.SearchCriteria))
	for _, c := range n.SearchCriteria {
		if c.Key() == "" {
			return fmt.Errorf("node %s has an unnamed search criterion", n.ID)
		}
		if seen[c] {
			return fmt.Errorf("node %s lists criterion %s twice", n.ID, c.Key())
		}
		seen[c] = true
	}
	return nil
}

// Range is an inclusive, contiguous index range.
type Range struct {
	Lower int `json:"start"`
	Upper int `json:"end"`
}

// NewRange builds the inclusive range [lower, upper].
func NewRange(lower, upper int) Range {
	return Range{Lower: lower, Upper: upper}
}

// PageRange returns the range covering page n (0-based) of the given size.
func PageRange(n, size int) Range {
	if size <= 0 {
		size = 1
	}
	if n < 0 {
		n = 0
	}
	return Range{Lower: n * size, Upper: (n+1)*size - 1}
}

// Len returns the number of indices covered, or 0 for an empty range. Ranges wider than
// [math.MaxInt] report math.MaxInt.
func (r Range) Len() int {
	if r.Upper < r.Lower {
		return 0
	}
	if d := uint(r.Upper) - uint(r.Lower); d < math.MaxInt {
		return int(d) + 1
	}
	return math.MaxInt
}

// Empty reports whether the range covers no index.
func (r Range) Empty() bool {
	return r.Len() == 0
}

// Clamp pins the range to [0, total-1]. A negative total means the size is not known yet, in
// which case only the lower bound is clamped.
func (r Range) Clamp(total int) Range {
	if r.Lower < 0 {
		r.Lower = 0
	}
	if total >= 0 && r.Upper > total-1 {
		r.Upper = total - 1
	}
	return r
}

func (r Range) String() string {
	return fmt.Sprintf("%d...%d", r.Lower, r.Upper)
}

// ItemPage is the result of a range fetch or search.
//
// Total is nil when the backend cannot report the size of the node.
type ItemPage struct {
	Items []Item `json:"items"`
	Total *int   `json:"total,omitempty"`
}

// NewItemPage builds a page with a known total.
func NewItemPage(items []Item, total int) ItemPage {
	return ItemPage{Items: items, Total: &total}
}

// TotalOr returns the reported total or fallback when absent.
func (p ItemPage) TotalOr(fallback int) int {
	if p.Total == nil {
		return fallback
	}
	return *p.Total
}

// Slice returns the part of items covered by r, clamped, together with the full length.
//
// It is the reference paging used by in-memory and test catalogs.
func Slice(items []Item, r Range) ItemPage {
	r = r.Clamp(len(items))
	if r.Empty() {
		return NewItemPage([]Item{}, len(items))
	}
	page := make([]Item, r.Len())
	copy(page, items[r.Lower:r.Upper+1])
	return NewItemPage(page, len(items))
}
