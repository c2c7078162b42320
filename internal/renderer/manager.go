package renderer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

// Manager is the registry of known renderers.
type Manager struct {
	mu     sync.RWMutex
	hubs   []*Hub
	logger *log.Logger
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{logger: shared.WithLogger(logger, "component", "manager")}
}

// Add registers a hub. IDs must be unique.
func (m *Manager) Add(h *Hub) error {
	if h == nil || h.ID() == "" {
		return fmt.Errorf("%w: renderer ID is required", shared.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.hubs {
		if existing.ID() == h.ID() {
			return fmt.Errorf("%w: renderer %s already registered", shared.ErrInvalidArgument, h.ID())
		}
	}
	m.hubs = append(m.hubs, h)
	m.logger.Debug("renderer added", "renderer", h.ID(), "name", h.Name())
	return nil
}

// Remove unregisters the renderer with the given ID and reports whether it was present.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.hubs, func(h *Hub) bool { return h.ID() == id })
	if i < 0 {
		return false
	}
	m.hubs = slices.Delete(m.hubs, i, i+1)
	m.logger.Debug("renderer removed", "renderer", id)
	return true
}

// Renderers returns the registered hubs in registration order.
func (m *Manager) Renderers() []*Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.hubs)
}

// ByID finds a renderer by exact ID.
func (m *Manager) ByID(id string) (*Hub, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, h := range m.hubs {
		if h.ID() == id {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrRendererNotFound, id)
}

// ByName finds a renderer by display name, ignoring case and extra spaces.
func (m *Manager) ByName(name string) (*Hub, error) {
	key := shared.NormalizeKey(name)

	m.mu.RLock()
	for _, h := range m.hubs {
		if shared.NormalizeKey(h.Name()) == key {
			m.mu.RUnlock()
			return h, nil
		}
	}
	m.mu.RUnlock()

	if suggestion, ok := m.Suggest(name); ok {
		return nil, fmt.Errorf("%w: %q (did you mean %q?)", shared.ErrRendererNotFound, name, suggestion)
	}
	return nil, fmt.Errorf("%w: %q", shared.ErrRendererNotFound, name)
}

// Resolve accepts either an ID or a display name.
func (m *Manager) Resolve(ref string) (*Hub, error) {
	if h, err := m.ByID(ref); err == nil {
		return h, nil
	}
	return m.ByName(ref)
}

// Suggest returns the registered name closest to name, if any is close enough to be a typo.
func (m *Manager) Suggest(name string) (string, bool) {
	key := shared.NormalizeKey(name)
	if key == "" {
		return "", false
	}

	best, bestDist := "", -1
	for _, h := range m.Renderers() {
		candidate := h.Name()
		d := levenshtein.ComputeDistance(key, shared.NormalizeKey(candidate))
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len([]rune(key))/3) {
		return "", false
	}
	return best, true
}

// Snapshots returns the current state of every renderer in registration order.
func (m *Manager) Snapshots() []models.RendererState {
	hubs := m.Renderers()
	out := make([]models.RendererState, len(hubs))
	for i, h := range hubs {
		out[i] = h.Snapshot()
	}
	return out
}

// Groups lists the groups reported by registered renderers, one per group ID, sorted by name.
// When members disagree, the leader's report wins.
func (m *Manager) Groups() []models.Group {
	byID := make(map[string]models.Group)
	for _, s := range m.Snapshots() {
		if s.Group == nil {
			continue
		}
		g := *s.Group
		if _, seen := byID[g.ID]; !seen || g.LeaderID() == s.ID {
			byID[g.ID] = g.Clone()
		}
	}

	groups := make([]models.Group, 0, len(byID))
	for _, g := range byID {
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(a, b models.Group) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return groups
}

// CheckGroups verifies group membership across renderers: every renderer naming a group is one
// of its members, and every registered member of a group reports that group.
func (m *Manager) CheckGroups() error {
	snapshots := m.Snapshots()
	reported := make(map[string]string, len(snapshots))
	for _, s := range snapshots {
		if s.Group != nil {
			reported[s.ID] = s.Group.ID
		}
	}

	var errs []error
	for _, s := range snapshots {
		if err := s.CheckGroup(); err != nil {
			errs = append(errs, err)
			continue
		}
		if s.Group == nil {
			continue
		}
		for _, member := range s.Group.Members {
			if _, err := m.ByID(member.ID); err != nil {
				continue
			}
			if got := reported[member.ID]; got != s.Group.ID {
				errs = append(errs, fmt.Errorf("renderer %s lists %s in group %s, but %s reports %q",
					s.ID, member.ID, s.Group.ID, member.ID, got))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", shared.ErrMalformedResponse, errors.Join(errs...))
	}
	return nil
}

// SyncGroup pulls the state of the renderers named by ids, and of every renderer they were
// grouped with, then checks group membership across the registry. Unregistered IDs are skipped.
func (m *Manager) SyncGroup(ctx context.Context, ids []string) error {
	var hubs []*Hub
	add := func(id string) {
		if slices.ContainsFunc(hubs, func(h *Hub) bool { return h.ID() == id }) {
			return
		}
		if h, err := m.ByID(id); err == nil {
			hubs = append(hubs, h)
		}
	}
	for _, id := range ids {
		add(id)
		if h, err := m.ByID(id); err == nil {
			if g := h.Snapshot().Group; g != nil {
				for _, member := range g.MemberIDs() {
					add(member)
				}
			}
		}
	}

	var errs []error
	for _, h := range hubs {
		if err := h.UpdateState(ctx); err != nil {
			errs = append(errs, fmt.Errorf("refresh %s: %w", h.ID(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return m.CheckGroups()
}
