package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"imageupdater/internal/console"
	"imageupdater/internal/models"
	"imageupdater/internal/operation"
)

type Screen int

const (
	ScreenGate Screen = iota
	ScreenSearch
	ScreenProducts
)

// Config wires the model to the console and to whatever persists the
// session between runs.
type Config struct {
	Title         string
	Console       *console.Console
	Authenticated bool
	// Login exchanges the gate password for a session.
	Login func(ctx context.Context, password string) error
	// Changed is called after every state change worth persisting.
	Changed      func()
	DownloadDir  string
	PollInterval time.Duration
}

type (
	loginMsg    struct{ err error }
	searchMsg   struct{ err error }
	productsMsg struct{ err error }
	actionMsg   struct {
		text string
		err  error
	}
	pollMsg struct{}
)

type Model struct {
	cfg     Config
	c       *console.Console
	styles  *Styles
	screen  Screen
	spinner spinner.Model

	password textinput.Model
	query    textinput.Model
	path     textinput.Model
	prompt   bool

	cursor  int
	status  string
	gateErr string
	lastQ   string
	width   int

	quitting bool
}

func New(cfg Config) *Model {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "."
	}
	if cfg.Title == "" {
		cfg.Title = "Product Image Updater"
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = DefaultStyles().Info

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	query := textinput.New()
	query.Placeholder = "search collections by title or handle"
	query.CharLimit = 120

	path := textinput.New()
	path.Placeholder = "path/to/edited.csv"

	m := &Model{
		cfg:      cfg,
		c:        cfg.Console,
		styles:   DefaultStyles(),
		spinner:  s,
		password: password,
		query:    query,
		path:     path,
		lastQ:    "\x00",
	}
	if cfg.Authenticated {
		m.screen = ScreenSearch
		m.query.Focus()
	} else {
		m.screen = ScreenGate
		m.password.Focus()
	}
	return m
}

func (m *Model) Screen() Screen { return m.screen }

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, textinput.Blink}
	if m.screen == ScreenSearch {
		cmds = append(cmds, m.search(""))
	}
	if m.c.Tracker().State() == operation.Processing {
		cmds = append(cmds, m.poll())
	}
	return tea.Batch(cmds...)
}

func (m *Model) search(after string) tea.Cmd {
	q := m.query.Value()
	m.lastQ = q
	return func() tea.Msg {
		_, err := m.c.Search(context.Background(), q, after)
		return searchMsg{err: err}
	}
}

func (m *Model) selectCollection(col models.Collection) tea.Cmd {
	return func() tea.Msg {
		_, err := m.c.SelectCollection(context.Background(), col)
		return productsMsg{err: err}
	}
}

func (m *Model) poll() tea.Cmd {
	return tea.Tick(m.cfg.PollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

// act runs an operation action off the UI loop.
func (m *Model) act(fn func(ctx context.Context) (string, error)) tea.Cmd {
	m.status = ""
	return func() tea.Msg {
		text, err := fn(context.Background())
		return actionMsg{text: text, err: err}
	}
}

func (m *Model) changed() {
	if m.cfg.Changed != nil {
		m.cfg.Changed()
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.query.Width = max(20, msg.Width-20)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.screen {
		case ScreenGate:
			return m.updateGate(msg)
		case ScreenSearch:
			return m.updateSearch(msg)
		default:
			return m.updateProducts(msg)
		}

	case loginMsg:
		if msg.err != nil {
			m.gateErr = msg.err.Error()
			m.password.SetValue("")
			return m, nil
		}
		m.gateErr = ""
		m.password.Blur()
		m.screen = ScreenSearch
		m.query.Focus()
		m.changed()
		return m, m.search("")

	case searchMsg:
		if !errors.Is(msg.err, console.ErrSuperseded) {
			m.cursor = 0
		}
		return m, nil

	case productsMsg:
		if !errors.Is(msg.err, console.ErrSuperseded) {
			m.cursor = 0
			m.changed()
		}
		return m, nil

	case actionMsg:
		if msg.err == nil {
			m.status = msg.text
		}
		m.changed()
		if m.c.Tracker().State() == operation.Processing {
			return m, m.poll()
		}
		return m, nil

	case pollMsg:
		if m.c.Tracker().State() != operation.Processing {
			return m, nil
		}
		return m, m.act(func(ctx context.Context) (string, error) {
			op, err := m.c.Refresh(ctx)
			if err != nil {
				return "", err
			}
			if op.Status.Terminal() {
				m.c.ReloadProducts(ctx)
				return fmt.Sprintf("Operation %s: %d images updated", op.Status, op.ImagesUpdated), nil
			}
			return "", nil
		})

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateGate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEnter:
		password := m.password.Value()
		if password == "" || m.cfg.Login == nil {
			return m, nil
		}
		return m, func() tea.Msg {
			return loginMsg{err: m.cfg.Login(context.Background(), password)}
		}
	}
	var cmd tea.Cmd
	m.password, cmd = m.password.Update(msg)
	return m, cmd
}

func (m *Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.c.Snapshot()
	switch msg.Type {
	case tea.KeyEsc:
		if v.Collection != nil {
			m.screen = ScreenProducts
			m.query.Blur()
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit
	case tea.KeyUp:
		m.cursor = max(0, m.cursor-1)
		return m, nil
	case tea.KeyDown:
		m.cursor = min(max(0, len(v.Collections)-1), m.cursor+1)
		return m, nil
	case tea.KeyCtrlN:
		if v.PageInfo.HasNextPage {
			return m, m.search(v.PageInfo.EndCursor)
		}
		return m, nil
	case tea.KeyEnter:
		if m.cursor >= len(v.Collections) {
			return m, nil
		}
		m.screen = ScreenProducts
		m.query.Blur()
		return m, m.selectCollection(v.Collections[m.cursor])
	}

	var cmd tea.Cmd
	m.query, cmd = m.query.Update(msg)
	// Every edit searches; the console drops the responses it superseded.
	if m.query.Value() != m.lastQ {
		return m, tea.Batch(cmd, m.search(""))
	}
	return m, cmd
}

func (m *Model) updateProducts(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt {
		return m.updatePrompt(msg)
	}
	v := m.c.Snapshot()
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "esc", "/":
		m.screen = ScreenSearch
		m.query.Focus()
		return m, textinput.Blink
	case "up", "k":
		m.cursor = max(0, m.cursor-1)
	case "down", "j":
		m.cursor = min(max(0, len(v.Products)-1), m.cursor+1)
	case " ":
		if m.cursor < len(v.Products) {
			m.c.Toggle(v.Products[m.cursor].ID)
			m.changed()
		}
	case "a":
		m.c.SelectAll()
		m.changed()
	case "n":
		m.c.ClearSelection()
		m.changed()
	case "c":
		if v.CanCreate {
			return m, m.act(func(ctx context.Context) (string, error) {
				op, err := m.c.CreateOperation(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Created operation %s for %d products", op.OperationID, op.ProductsCount), nil
			})
		}
	case "d":
		if v.CanDownload {
			return m, m.act(func(ctx context.Context) (string, error) {
				path, err := m.c.DownloadCSV(ctx, m.cfg.DownloadDir)
				if err != nil {
					return "", err
				}
				return "Wrote " + path, nil
			})
		}
	case "u":
		if v.CanUpload {
			m.prompt = true
			m.path.SetValue("")
			m.path.Focus()
			return m, textinput.Blink
		}
	case "p":
		if v.CanProcess {
			return m, m.act(func(ctx context.Context) (string, error) {
				res, err := m.c.ProcessUpdates(ctx)
				if err != nil {
					return "", err
				}
				return res.Message, nil
			})
		}
	case "r":
		if v.Operation != nil {
			return m, m.act(func(ctx context.Context) (string, error) {
				_, err := m.c.Refresh(ctx)
				return "", err
			})
		}
	case "x":
		if v.CanReset {
			if err := m.c.Reset(); err == nil {
				m.status = "Ready for a new operation"
				m.changed()
			}
		}
	}
	return m, nil
}

func (m *Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = false
		m.path.Blur()
		return m, nil
	case tea.KeyEnter:
		m.prompt = false
		m.path.Blur()
		path := m.path.Value()
		return m, m.act(func(ctx context.Context) (string, error) {
			res, err := m.c.UploadCSV(ctx, path)
			if err != nil {
				return "", err
			}
			return res.Message, nil
		})
	}
	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}
