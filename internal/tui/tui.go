// Package tui provides a Bubble Tea terminal user interface for photohq.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	photohq "github.com/menta2k/photo-hq"
	"github.com/menta2k/photo-hq/internal/utils"
	"github.com/menta2k/photo-hq/pkg/library"
	"github.com/menta2k/photo-hq/pkg/optimizer"
	"github.com/menta2k/photo-hq/pkg/picker"
	"github.com/menta2k/photo-hq/pkg/processing"
	"github.com/menta2k/photo-hq/pkg/types"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(0, 1).
			MarginRight(1)

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFE66D")).
			Padding(1, 2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.Color("#95E1A3")).
			Padding(0, 2)

	disabledButtonStyle = buttonStyle.
				Foreground(lipgloss.Color("#6C757D")).
				Background(lipgloss.Color("#2B2B2B"))
)

// Preview cell size of each panel
const (
	previewWidth  = 32
	previewHeight = 12
)

// Screen is the part of the UI that has focus
type Screen int

const (
	ScreenMain Screen = iota
	ScreenPicker
)

// Message types
type (
	// StateMsg carries an optimizer snapshot published by a subscription
	StateMsg struct {
		State optimizer.State
	}

	// LoadingMsg mirrors the picker's loading binding
	LoadingMsg struct {
		Loading bool
	}

	// PickedMsg is sent when the picker finished loading a selection
	PickedMsg struct {
		Path  string
		Count int
		Err   error
	}

	// OptimizedMsg is sent when an inference run resolves
	OptimizedMsg struct {
		Err error
	}

	// SavedMsg is sent when a save resolves
	SavedMsg struct {
		Path string
		Err  error
	}
)

// sender forwards messages from background goroutines into the program
type sender struct {
	mu sync.Mutex
	p  *tea.Program

	// changed holds at most one pending optimizer state change
	changed chan struct{}
}

func newSender() *sender {
	return &sender{changed: make(chan struct{}, 1)}
}

func (s *sender) attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

// Send blocks until the program takes msg. It must not be called from the
// event loop.
func (s *sender) Send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// StateChanged records a state change without blocking. Optimizer
// subscribers run on whatever goroutine changed the state, including the
// event loop itself.
func (s *sender) StateChanged() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// forward sends a fresh snapshot for every recorded change until ctx is done
func (s *sender) forward(ctx context.Context, opt *optimizer.Optimizer) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.changed:
			s.Send(StateMsg{State: opt.State()})
		}
	}
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	screen     Screen
	optimizer  *optimizer.Optimizer
	library    *library.Dir
	picker     *picker.Adapter
	filepicker filepicker.Model
	spinner    spinner.Model
	sender     *sender

	state     optimizer.State
	loading   bool
	original  string
	converted string
	status    string
	err       error
	shelf     string

	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int
}

// NewModel creates a new TUI model driving app's optimizer.
func NewModel(app *photohq.App) Model {
	snd := newSender()

	fp := filepicker.New()
	fp.CurrentDirectory = app.Config().Picker.StartDir
	fp.AllowedTypes = utils.ImageExtensions()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		screen:     ScreenMain,
		optimizer:  app.Optimizer(),
		library:    app.Library(),
		filepicker: fp,
		spinner:    sp,
		sender:     snd,
		ctx:        ctx,
		cancel:     cancel,
	}
	m.picker = app.NewPicker(
		picker.WithLoadingBinding(func(loading bool) { snd.Send(LoadingMsg{Loading: loading}) }),
		picker.WithDismiss(func() { snd.Send(dismissMsg{}) }),
	)
	m.setState(m.optimizer.State())
	m.refreshLibrary()
	return m
}

type dismissMsg struct{}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Busy reports whether an inference run or a picker load is in progress
func (m Model) Busy() bool {
	return m.state.Optimizing || m.loading
}

// ActionLabel is the label of the optimize/save button
func (m Model) ActionLabel() string {
	if m.state.Converted != nil {
		return "Save"
	}
	return "Optimize"
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// the picker sizes itself from the window even while hidden
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}
		if m.screen == ScreenPicker {
			return m.updatePicker(msg)
		}
		return m.updateMain(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case StateMsg:
		m.setState(msg.State)

	case LoadingMsg:
		m.loading = msg.Loading

	case dismissMsg:
		m.screen = ScreenMain

	case PickedMsg:
		m.loading = false
		switch {
		case msg.Err != nil:
			m.err = msg.Err
		case msg.Count == 0:
			m.status = fmt.Sprintf("Nothing could be loaded from %s", msg.Path)
		default:
			m.err = nil
			m.status = fmt.Sprintf("Picked %s", msg.Path)
		}
		m.setState(m.optimizer.State())

	case OptimizedMsg:
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.err = nil
			m.status = "Optimization finished"
		}
		m.setState(m.optimizer.State())

	case SavedMsg:
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.err = nil
			m.status = fmt.Sprintf("Saved %s", msg.Path)
			m.refreshLibrary()
		}
		m.setState(m.optimizer.State())
	}

	if m.screen == ScreenPicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.cancel()
		return m, tea.Quit

	case "p":
		if m.Busy() {
			return m, nil
		}
		m.screen = ScreenPicker
		return m, m.filepicker.Init()

	case "o":
		return m.act()

	case "enter":
		if m.state.ShowAlert {
			m.optimizer.DismissAlert()
			m.setState(m.optimizer.State())
		}
	}
	return m, nil
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.screen = ScreenMain
		return m, nil
	}

	var cmd tea.Cmd
	m.filepicker, cmd = m.filepicker.Update(msg)

	if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
		m.loading = true
		if m.picker.Config().CloseAfterSelection {
			m.screen = ScreenMain
		}
		return m, tea.Batch(cmd, m.pick(path), m.spinner.Tick)
	}
	if didSelect, path := m.filepicker.DidSelectDisabledFile(msg); didSelect {
		m.err = fmt.Errorf("%s is not a photo", path)
	}
	return m, cmd
}

// act runs the optimize or save action depending on state
func (m Model) act() (tea.Model, tea.Cmd) {
	if m.Busy() {
		return m, nil
	}

	if converted := m.state.Converted; converted != nil {
		t := m.optimizer.SaveImage(m.ctx, converted)
		return m, func() tea.Msg {
			path, err := t.Wait(m.ctx)
			return SavedMsg{Path: path, Err: err}
		}
	}

	if m.state.Original == nil {
		m.status = "Pick a photo first (p)"
		return m, nil
	}

	t, err := m.optimizer.OptimizeImage(m.ctx, *m.state.Original)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.setState(m.optimizer.State())
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		_, err := t.Wait(m.ctx)
		return OptimizedMsg{Err: err}
	})
}

// pick loads path through the picker adapter on a command goroutine
func (m Model) pick(path string) tea.Cmd {
	adapter, opt, ctx := m.picker, m.optimizer, m.ctx
	return func() tea.Msg {
		providers, err := adapter.Resolve([]string{path})
		if err != nil {
			return PickedMsg{Path: path, Err: err}
		}

		count := 0
		adapter.Pick(ctx, providers, func(photos []processing.Photo) {
			count = len(photos)
			if count > 0 {
				opt.SetOriginal(photos[0])
			}
		})
		return PickedMsg{Path: path, Count: count}
	}
}

// refreshLibrary summarizes the photos saved so far
func (m *Model) refreshLibrary() {
	entries, err := m.library.List()
	if err != nil {
		m.shelf = fmt.Sprintf("library: %s (unreadable)", m.library.Root())
		return
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	m.shelf = fmt.Sprintf("library: %s (%d photos, %s)", m.library.Root(), len(entries), utils.FormatFileSize(total))
}

func (m *Model) setState(s optimizer.State) {
	if s.Original == nil {
		m.original = ""
	} else if m.state.Original != s.Original || m.original == "" {
		m.original = Preview(s.Original.Image, previewWidth, previewHeight)
	}
	if s.Converted == nil {
		m.converted = ""
	} else if m.state.Converted != s.Converted || m.converted == "" {
		m.converted = Preview(s.Converted, previewWidth, previewHeight)
	}
	m.state = s
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("photohq"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Upscale photos with an on-device model"))
	b.WriteString("\n\n")

	if m.screen == ScreenPicker {
		b.WriteString(subtitleStyle.Render("Pick a photo:"))
		b.WriteString("\n\n")
		b.WriteString(m.filepicker.View())
	} else {
		b.WriteString(m.viewMain())
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("✗ " + m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(infoStyle.Render("› " + m.status))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(m.helpText()))

	return b.String()
}

func (m Model) viewMain() string {
	var b strings.Builder

	var originalSize types.Size
	if m.state.Original != nil {
		originalSize = m.state.Original.DisplaySize()
	}
	var convertedSize types.Size
	if m.state.Converted != nil {
		cb := m.state.Converted.Bounds()
		convertedSize = types.Size{Width: cb.Dx(), Height: cb.Dy()}
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		panel("Original", originalSize, m.original),
		panel("Converted", convertedSize, m.converted),
	))
	b.WriteString("\n")

	if m.Busy() {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		if m.loading {
			b.WriteString(subtitleStyle.Render("Loading photo..."))
		} else {
			b.WriteString(subtitleStyle.Render("Optimizing..."))
		}
		b.WriteString("\n")
	} else {
		style := buttonStyle
		if m.state.Original == nil {
			style = disabledButtonStyle
		}
		b.WriteString(style.Render(m.ActionLabel()))
		b.WriteString("\n")
	}

	if m.state.Correction.Empty() {
		b.WriteString(dimStyle.Render("aspect: square"))
	} else {
		b.WriteString(dimStyle.Render("aspect: " + m.state.Correction.String()))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.shelf))
	b.WriteString("\n")

	if m.state.ShowAlert {
		b.WriteString("\n")
		b.WriteString(alertStyle.Render(m.state.AlertMessage + "\n\n" + dimStyle.Render("enter: OK")))
		b.WriteString("\n")
	}

	return b.String()
}

func panel(title string, size types.Size, preview string) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render(title))
	b.WriteString("\n")
	if size.Empty() {
		b.WriteString(dimStyle.Render("no photo"))
	} else {
		b.WriteString(infoStyle.Render(size.String()))
		b.WriteString("\n")
		b.WriteString(preview)
	}
	return panelStyle.Width(previewWidth + 2).Render(b.String())
}

func (m Model) helpText() string {
	if m.screen == ScreenPicker {
		return "↑/↓: move • enter: select • esc: back"
	}
	if m.state.ShowAlert {
		return "enter: dismiss • q: quit"
	}
	if m.Busy() {
		return "ctrl+c: quit"
	}
	return fmt.Sprintf("p: pick photo • o: %s • q: quit", strings.ToLower(m.ActionLabel()))
}

// Run starts the TUI application.
func Run(app *photohq.App) error {
	p, stop := newProgram(NewModel(app), tea.WithAltScreen())
	defer stop()

	_, err := p.Run()
	return err
}

// newProgram wires m's optimizer subscription into a new program. The
// returned function releases the subscription and the forwarding goroutine.
func newProgram(m Model, opts ...tea.ProgramOption) (*tea.Program, func()) {
	p := tea.NewProgram(m, opts...)
	m.sender.attach(p)

	unsubscribe := m.optimizer.Subscribe(func(optimizer.State) {
		m.sender.StateChanged()
	})
	go m.sender.forward(m.ctx, m.optimizer)

	return p, func() {
		unsubscribe()
		m.cancel()
	}
}
