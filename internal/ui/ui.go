package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/formatter"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/queue"
	"github.com/desertthunder/renderkit/internal/renderer"
	"github.com/desertthunder/renderkit/internal/session"
	"github.com/desertthunder/renderkit/internal/shared"
	"github.com/desertthunder/renderkit/internal/tasks"
)

const (
	defaultPageSize = 50
	defaultDebounce = 300 * time.Millisecond
	volumeStep      = 2
)

// Pane is the focused half of the screen.
type Pane int

const (
	BrowsePane Pane = iota
	QueuePane
)

// Options configures a [Model].
type Options struct {
	PageSize int
	Debounce time.Duration
	Renderer string // ID or name of the renderer selected at start
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	session  *session.Session
	pageSize int
	debounce time.Duration

	width  int
	height int
	pane   Pane

	// Browse
	stack      []*catalog.Container
	items      []models.Item
	total      int // -1 while unknown
	loading    bool
	browseList list.Model

	// Search
	input     textinput.Model
	typing    bool
	searchGen int
	keyword   string
	criterion int // index into the node's criteria

	// Renderer
	hub        *renderer.Hub
	queue      *queue.Coordinator
	state      models.RendererState
	queueList  list.Model
	stateCh    <-chan models.RendererState
	queueCh    <-chan []models.QueueEntry
	stopState  func()
	stopQueue  func()
	rendererAt int

	progressChan chan tasks.ProgressUpdate
	bulkResult   *tasks.BulkEnqueueResult
	bulkErr      error

	status string
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model over s.
func NewModel(ctx context.Context, s *session.Session, opts Options) *Model {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}

	input := textinput.New()
	input.Placeholder = "search"
	input.Prompt = "/ "

	m := &Model{
		ctx:        ctx,
		session:    s,
		pageSize:   opts.PageSize,
		debounce:   opts.Debounce,
		total:      -1,
		browseList: newList("Browse"),
		queueList:  newList("Queue"),
		input:      input,
		help:       help.New(),
		keys:       newKeyMap(),
	}

	for i, h := range s.Manager().Renderers() {
		if opts.Renderer == "" || h.ID() == opts.Renderer || shared.NormalizeKey(h.Name()) == shared.NormalizeKey(opts.Renderer) {
			m.rendererAt = i
			break
		}
	}
	return m
}

// Init opens the root node and attaches to the selected renderer.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.openNode(""), m.selectRenderer(m.rendererAt))
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if m.typing {
			return m.handleSearchKeys(msg)
		}
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgNodeOpened:
		data := msg.data.(nodeOpened)
		if data.err != nil {
			m.status = ""
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.stack = append(m.stack, data.container)
		return m, m.resetBrowse()

	case MsgPageLoaded, MsgSearchResults:
		data := msg.data.(pageLoaded)
		if msg.kind == MsgSearchResults && data.gen != m.searchGen {
			return m, nil
		}
		if msg.kind == MsgPageLoaded && m.keyword != "" {
			return m, nil
		}
		m.loading = false
		if data.err != nil {
			if shared.IsCancelled(data.err) {
				return m, nil
			}
			m.err = data.err
			return m, nil
		}
		m.err = nil
		if data.offset == 0 {
			m.items = nil
		}
		m.items = append(m.items, data.page.Items...)
		m.total = data.page.TotalOr(-1)
		if data.page.Total == nil && len(data.page.Items) < m.pageSize {
			m.total = len(m.items)
		}
		return m, m.browseList.SetItems(catalogItems(m.items))

	case MsgSearchTick:
		if msg.data.(int) != m.searchGen {
			return m, nil
		}
		return m, m.startSearch()

	case MsgStateUpdated:
		m.state = msg.data.(models.RendererState)
		cmds := []tea.Cmd{m.waitForState()}
		if m.queue != nil {
			cmds = append(cmds, m.queueList.SetItems(queueItems(m.queue.Entries(), m.playingID())))
		}
		return m, tea.Batch(cmds...)

	case MsgQueueUpdated:
		entries := msg.data.([]models.QueueEntry)
		return m, tea.Batch(m.queueList.SetItems(queueItems(entries, m.playingID())), m.waitForQueue())

	case MsgActionDone:
		data := msg.data.(actionDone)
		if data.err != nil {
			m.err = data.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = data.label
		return m, nil

	case MsgProgressUpdate:
		m.status = msg.data.(tasks.ProgressUpdate).Message
		return m, m.waitForProgress()

	case MsgBulkComplete:
		data := msg.data.(bulkComplete)
		m.progressChan = nil
		if data.err != nil {
			m.err = data.err
		}
		if data.result != nil {
			m.status = fmt.Sprintf("Added %d of %d items (%d skipped, %d failed)",
				data.result.Enqueued, data.result.Seen, len(data.result.Skipped), len(data.result.Failed))
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.unsubscribe()
		return m, tea.Quit
	case key.Matches(msg, m.keys.pane):
		if m.pane == BrowsePane {
			m.pane = QueuePane
		} else {
			m.pane = BrowsePane
		}
		return m, nil
	case key.Matches(msg, m.keys.playPause):
		return m, m.togglePlay()
	case key.Matches(msg, m.keys.next):
		return m, m.hubAction("Next", func(ctx context.Context, h *renderer.Hub) error { return h.PlayNext(ctx) })
	case key.Matches(msg, m.keys.previous):
		return m, m.hubAction("Previous", func(ctx context.Context, h *renderer.Hub) error { return h.PlayPrevious(ctx) })
	case key.Matches(msg, m.keys.volUp):
		return m, m.changeVolume(volumeStep)
	case key.Matches(msg, m.keys.volDown):
		return m, m.changeVolume(-volumeStep)
	case key.Matches(msg, m.keys.renderer):
		if n := len(m.session.Manager().Renderers()); n > 0 {
			return m, m.selectRenderer((m.rendererAt + 1) % n)
		}
		return m, nil
	}

	if m.pane == QueuePane {
		return m.handleQueueKeys(msg)
	}
	return m.handleBrowseKeys(msg)
}

func (m *Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.search):
		if c := m.current(); c != nil && c.Searchable() {
			m.typing = true
			m.input.SetValue(m.keyword)
			return m, m.input.Focus()
		}
		m.status = "This node cannot be searched"
		return m, nil
	case key.Matches(msg, m.keys.back):
		if m.keyword != "" {
			m.clearSearch()
			return m, m.resetBrowse()
		}
		if len(m.stack) > 1 {
			m.stack = m.stack[:len(m.stack)-1]
			return m, m.resetBrowse()
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.selectedItem(); ok {
			if item.Kind.IsContainer() {
				m.clearSearch()
				return m, m.openNode(item.ID)
			}
			return m, m.enqueue(item, models.PlayNow)
		}
		return m, nil
	case key.Matches(msg, m.keys.enqueue):
		if item, ok := m.selectedItem(); ok {
			return m, m.enqueue(item, models.AddToEnd)
		}
		return m, nil
	case key.Matches(msg, m.keys.playNow):
		if item, ok := m.selectedItem(); ok {
			return m, m.enqueue(item, models.PlayNow)
		}
		return m, nil
	case key.Matches(msg, m.keys.addAll):
		return m, m.addAll()
	}

	var cmd tea.Cmd
	m.browseList, cmd = m.browseList.Update(msg)
	return m, tea.Batch(cmd, m.maybeLoadMore())
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.unsubscribe()
		return m, tea.Quit
	case msg.Type == tea.KeyEsc:
		m.typing = false
		m.input.Blur()
		m.clearSearch()
		return m, m.resetBrowse()
	case msg.Type == tea.KeyEnter:
		m.typing = false
		m.input.Blur()
		m.searchGen++
		return m, m.startSearch()
	case key.Matches(msg, m.keys.criterion):
		if c := m.current(); c != nil && len(c.Node().SearchCriteria) > 0 {
			m.criterion = (m.criterion + 1) % len(c.Node().SearchCriteria)
			m.searchGen++
			gen := m.searchGen
			return m, tea.Tick(m.debounce, func(time.Time) tea.Msg { return searchTickMsg(gen) })
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}

	m.searchGen++
	gen := m.searchGen
	return m, tea.Batch(cmd, tea.Tick(m.debounce, func(time.Time) tea.Msg { return searchTickMsg(gen) }))
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.enter):
		if e, ok := m.selectedEntry(); ok {
			return m, m.queueAction("Playing "+e.Title, func(ctx context.Context, q *queue.Coordinator) error { return q.Play(ctx, e) })
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if e, ok := m.selectedEntry(); ok {
			return m, m.queueAction("Removed "+e.Title, func(ctx context.Context, q *queue.Coordinator) error {
				return q.Remove(ctx, []models.QueueEntry{e})
			})
		}
		return m, nil
	case key.Matches(msg, m.keys.clear):
		return m, m.queueAction("Queue cleared", func(ctx context.Context, q *queue.Coordinator) error { return q.Clear(ctx) })
	case key.Matches(msg, m.keys.back):
		m.pane = BrowsePane
		return m, nil
	}

	var cmd tea.Cmd
	m.queueList, cmd = m.queueList.Update(msg)
	return m, cmd
}

func (m *Model) current() *catalog.Container {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

func (m *Model) selectedItem() (models.Item, bool) {
	if sel, ok := m.browseList.SelectedItem().(catalogItem); ok {
		return sel.item, true
	}
	return models.Item{}, false
}

func (m *Model) selectedEntry() (models.QueueEntry, bool) {
	if sel, ok := m.queueList.SelectedItem().(queueItem); ok {
		return sel.entry, true
	}
	return models.QueueEntry{}, false
}

func (m *Model) playingID() string {
	if m.state.CurrentTrack != nil {
		return m.state.CurrentTrack.ID
	}
	return ""
}

func (m *Model) clearSearch() {
	if m.keyword != "" {
		if c := m.current(); c != nil {
			c.ResetSearch()
		}
	}
	m.keyword = ""
	m.searchGen++
	m.input.SetValue("")
}

func (m *Model) resize() {
	w := max(m.width/2-4, 20)
	h := max(m.height-10, 5)
	m.browseList.SetSize(w, h)
	m.queueList.SetSize(w, h)
}

func (m *Model) openNode(id string) tea.Cmd {
	m.status = "Loading..."
	return func() tea.Msg {
		c, err := m.session.Container(m.ctx, id)
		return nodeOpenedMsg(c, err)
	}
}

// resetBrowse reloads the first page of the current node.
func (m *Model) resetBrowse() tea.Cmd {
	c := m.current()
	if c == nil {
		return nil
	}
	m.items = nil
	m.total = -1
	m.status = ""
	m.browseList.Title = c.Node().Title
	m.browseList.Select(0)
	return tea.Batch(m.browseList.SetItems(nil), m.loadPage(0))
}

func (m *Model) loadPage(offset int) tea.Cmd {
	c := m.current()
	if c == nil {
		return nil
	}
	m.loading = true
	r := models.NewRange(offset, offset+m.pageSize-1)
	return func() tea.Msg {
		page, err := c.GetItems(m.ctx, r)
		return pageLoadedMsg(MsgPageLoaded, 0, offset, page, err)
	}
}

// maybeLoadMore fetches the next page once the cursor reaches the last loaded item.
func (m *Model) maybeLoadMore() tea.Cmd {
	if m.loading || len(m.items) == 0 || m.browseList.Index() < len(m.items)-1 {
		return nil
	}
	if m.total >= 0 && len(m.items) >= m.total {
		return nil
	}
	if m.keyword != "" {
		return m.searchPage(len(m.items), false)
	}
	return m.loadPage(len(m.items))
}

func (m *Model) startSearch() tea.Cmd {
	keyword := strings.TrimSpace(m.input.Value())
	if keyword == "" {
		if m.keyword != "" {
			m.clearSearch()
			return m.resetBrowse()
		}
		return nil
	}
	m.keyword = keyword
	m.items = nil
	m.total = -1
	m.browseList.Select(0)
	return m.searchPage(0, true)
}

func (m *Model) searchPage(offset int, first bool) tea.Cmd {
	c := m.current()
	if c == nil || !c.Searchable() {
		return nil
	}
	criteria := c.Node().SearchCriteria
	criterion := criteria[m.criterion%len(criteria)]
	keyword, gen := m.keyword, m.searchGen
	r := models.NewRange(offset, offset+m.pageSize-1)

	m.loading = true
	m.status = fmt.Sprintf("Searching %s for %q...", criterion.Key(), keyword)
	return func() tea.Msg {
		page, err := c.Search(m.ctx, keyword, criterion, r, first)
		return pageLoadedMsg(MsgSearchResults, gen, offset, page, err)
	}
}

// selectRenderer attaches the queue pane and status bar to the i-th renderer.
func (m *Model) selectRenderer(i int) tea.Cmd {
	hubs := m.session.Manager().Renderers()
	if i < 0 || i >= len(hubs) {
		return nil
	}
	m.unsubscribe()

	m.rendererAt = i
	m.hub = hubs[i]
	m.state = m.hub.Snapshot()
	q, err := m.session.Queue(m.hub.ID())
	if err != nil {
		m.err = err
		return nil
	}
	m.queue = q
	m.stateCh, m.stopState = m.hub.Subscribe(8)
	m.queueCh, m.stopQueue = q.Subscribe(8)
	m.queueList.Title = "Queue · " + m.hub.Name()

	refresh := func() tea.Msg {
		if err := q.Refresh(m.ctx); err != nil {
			return actionDoneMsg("", err)
		}
		return actionDoneMsg("Attached to "+m.hub.Name(), nil)
	}
	return tea.Batch(m.waitForState(), m.waitForQueue(), refresh)
}

func (m *Model) unsubscribe() {
	if m.stopState != nil {
		m.stopState()
		m.stopState = nil
	}
	if m.stopQueue != nil {
		m.stopQueue()
		m.stopQueue = nil
	}
}

func (m *Model) waitForState() tea.Cmd {
	ch := m.stateCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return stateUpdatedMsg(s)
	}
}

func (m *Model) waitForQueue() tea.Cmd {
	ch := m.queueCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		entries, ok := <-ch
		if !ok {
			return nil
		}
		return queueUpdatedMsg(entries)
	}
}

func (m *Model) enqueue(item models.Item, option models.AddToQueueOption) tea.Cmd {
	return m.queueAction(fmt.Sprintf("%s: %s", option, item.Label()), func(ctx context.Context, q *queue.Coordinator) error {
		return q.Enqueue(ctx, item, option)
	})
}

func (m *Model) queueAction(label string, fn func(context.Context, *queue.Coordinator) error) tea.Cmd {
	q := m.queue
	if q == nil {
		return nil
	}
	return func() tea.Msg {
		return actionDoneMsg(label, fn(m.ctx, q))
	}
}

func (m *Model) hubAction(label string, fn func(context.Context, *renderer.Hub) error) tea.Cmd {
	h := m.hub
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		return actionDoneMsg(label, fn(m.ctx, h))
	}
}

func (m *Model) togglePlay() tea.Cmd {
	next := models.StatePlay
	if m.state.PlayState == models.StatePlay {
		next = models.StatePause
	}
	return m.hubAction(string(next), func(ctx context.Context, h *renderer.Hub) error { return h.SetPlayState(ctx, next) })
}

func (m *Model) changeVolume(delta int) tea.Cmd {
	v := min(max(m.state.Volume+delta, m.state.MinVolume), m.state.MaxVolume)
	return m.hubAction(fmt.Sprintf("Volume %d", v), func(ctx context.Context, h *renderer.Hub) error { return h.SetVolume(ctx, v) })
}

func (m *Model) addAll() tea.Cmd {
	c, q := m.current(), m.queue
	if c == nil || q == nil || m.progressChan != nil {
		return nil
	}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	progress := m.progressChan

	go func() {
		m.bulkResult, m.bulkErr = m.session.Engine().BulkEnqueue(m.ctx, progress, c, q, tasks.BulkEnqueueOpts{PageSize: m.pageSize})
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progressChan
	return func() tea.Msg {
		if progress == nil {
			return bulkCompleteMsg(m.bulkResult, m.bulkErr)
		}
		update, ok := <-progress
		if !ok {
			return bulkCompleteMsg(m.bulkResult, m.bulkErr)
		}
		return progressUpdateMsg(update)
	}
}

// View renders the browse pane, the queue pane and the status bar.
func (m *Model) View() string {
	browseStyle, queueStyle := styles.active, styles.pane
	if m.pane == QueuePane {
		browseStyle, queueStyle = styles.pane, styles.active
	}

	left := m.browseList.View()
	if m.typing || m.keyword != "" {
		left = m.input.View() + "  " + styles.help.Render(m.criterionLabel()) + "\n" + left
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, browseStyle.Render(left), queueStyle.Render(m.queueList.View()))

	return strings.Join([]string{m.renderHeader(), body, m.renderStatus(), m.help.ShortHelpView(m.keys.ShortHelp())}, "\n")
}

func (m *Model) criterionLabel() string {
	c := m.current()
	if c == nil || len(c.Node().SearchCriteria) == 0 {
		return ""
	}
	criteria := c.Node().SearchCriteria
	return "by " + criteria[m.criterion%len(criteria)].Key()
}

func (m *Model) renderHeader() string {
	if m.hub == nil {
		return styles.warn.Render("No renderer")
	}
	s := m.state
	parts := []string{styles.header.Render(s.Name), string(s.PlayState), fmt.Sprintf("vol %d", s.Volume)}
	if s.Mute {
		parts = append(parts, "muted")
	}
	if s.CurrentTrack != nil {
		parts = append(parts, s.CurrentTrack.Label())
	}
	if s.Progress != nil {
		parts = append(parts, formatter.ProgressString(*s.Progress))
	}
	if !m.hub.Reachable() {
		parts = append(parts, styles.err.Render("unreachable"))
	}
	return strings.Join(parts, " · ")
}

func (m *Model) renderStatus() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if m.status != "" {
		return styles.ok.Render(m.status)
	}
	if m.total >= 0 {
		return styles.help.Render(fmt.Sprintf("%d of %d loaded", len(m.items), m.total))
	}
	return ""
}
