package ui

import (
	"context"
	"fmt"
	"strings"

	"potluck/models"
	"potluck/services"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	focusName = iota
	focusDish
	focusList
	focusCount
)

type rosterMsg []models.Dish

type alertMsg string

type submitDoneMsg struct {
	sent services.DishForm // form as it was when enter was pressed
	form services.DishForm // after Submit; reset on success
	err  error
}

type deleteDoneMsg struct{ err error }

type keyMap struct {
	Next, Submit, Toggle, Up, Down, Delete, Dismiss, Quit key.Binding
}

var keys = keyMap{
	Next:    key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
	Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add dish")),
	Toggle:  key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "savory/sweet")),
	Up:      key.NewBinding(key.WithKeys("up", "k")),
	Down:    key.NewBinding(key.WithKeys("down", "j")),
	Delete:  key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "remove")),
	Dismiss: key.NewBinding(key.WithKeys("enter", "esc", " ")),
	Quit:    key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
}

// Model is the live board. Roster snapshots and notifier messages arrive
// on channels so the roster never blocks on the UI.
type Model struct {
	ctx    context.Context
	roster *services.Roster

	name     textinput.Model
	dish     textinput.Model
	category models.Category
	focus    int

	entries    []models.Dish
	cursor     int
	loading    bool
	submitting bool
	alert      string // blocking until dismissed

	changes chan []models.Dish
	alerts  chan string
}

func New(ctx context.Context) Model {
	name := textinput.New()
	name.Prompt = "Your name: "
	name.Placeholder = "Type your name"
	name.CharLimit = 120
	name.Focus()

	dish := textinput.New()
	dish.Prompt = "Dish: "
	dish.Placeholder = "e.g. Lasagna, Chocolate cake..."
	dish.CharLimit = 120

	return Model{
		ctx:      ctx,
		name:     name,
		dish:     dish,
		category: models.DefaultCategory,
		loading:  true,
		changes:  make(chan []models.Dish, 1),
		alerts:   make(chan string, 8),
	}
}

// Notifier shows roster messages on the board.
func (m Model) Notifier() services.Notifier {
	return services.NotifierFunc(func(msg string) {
		select {
		case m.alerts <- msg:
		default:
		}
	})
}

// WithRoster binds the board to r and seeds it with r's current list.
func (m Model) WithRoster(r *services.Roster) Model {
	m.roster = r
	r.OnChange(func(entries []models.Dish) {
		// keep only the newest snapshot
		select {
		case <-m.changes:
		default:
		}
		select {
		case m.changes <- entries:
		default:
		}
	})
	m.entries = r.Entries()
	st := r.State()
	m.loading = st == services.StateNotLoaded || st == services.StateLoading
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange(), m.waitForAlert())
}

func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case entries := <-m.changes:
			return rosterMsg(entries)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) waitForAlert() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.alerts:
			return alertMsg(msg)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case rosterMsg:
		m.entries = msg
		m.loading = false
		if n := len(m.ordered()); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		return m, m.waitForChange()

	case alertMsg:
		m.alert = string(msg)
		return m, m.waitForAlert()

	case submitDoneMsg:
		m.submitting = false
		if msg.err != nil {
			return m, nil
		}
		// fields edited while the insert was in flight keep the new text
		if m.name.Value() == msg.sent.Name {
			m.name.SetValue(msg.form.Name)
		}
		if m.dish.Value() == msg.sent.DishName {
			m.dish.SetValue(msg.form.DishName)
		}
		if m.category == msg.sent.Category {
			m.category = msg.form.Category
		}
		if m.name.Value() == "" && m.dish.Value() == "" {
			m.setFocus(focusName)
		}
		return m, nil

	case deleteDoneMsg:
		return m, nil

	case tea.KeyMsg:
		if m.alert != "" {
			if key.Matches(msg, keys.Dismiss) {
				m.alert = ""
			}
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, keys.Next):
		step := 1
		if msg.String() == "shift+tab" {
			step = focusCount - 1
		}
		m.setFocus((m.focus + step) % focusCount)
		return m, nil
	case key.Matches(msg, keys.Toggle):
		m.toggleCategory()
		return m, nil
	}

	if m.focus == focusList {
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.ordered())-1 {
				m.cursor++
			}
		case msg.String() == "t":
			m.toggleCategory()
		case key.Matches(msg, keys.Delete):
			return m, m.deleteSelected()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Submit):
		if m.submitting || m.roster == nil {
			return m, nil
		}
		m.submitting = true
		return m, m.submit()
	}

	var cmd tea.Cmd
	if m.focus == focusName {
		m.name, cmd = m.name.Update(msg)
	} else {
		m.dish, cmd = m.dish.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(f int) {
	m.focus = f
	m.name.Blur()
	m.dish.Blur()
	switch f {
	case focusName:
		m.name.Focus()
	case focusDish:
		m.dish.Focus()
	}
}

func (m *Model) toggleCategory() {
	if m.category == models.CategorySweet {
		m.category = models.CategorySavory
	} else {
		m.category = models.CategorySweet
	}
}

func (m Model) submit() tea.Cmd {
	sent := services.DishForm{Name: m.name.Value(), DishName: m.dish.Value(), Category: m.category}
	r, ctx := m.roster, m.ctx
	return func() tea.Msg {
		form := sent
		err := r.Submit(ctx, &form)
		return submitDoneMsg{sent: sent, form: form, err: err}
	}
}

func (m Model) deleteSelected() tea.Cmd {
	items := m.ordered()
	if m.roster == nil || m.cursor >= len(items) {
		return nil
	}
	id := items[m.cursor].ID
	r, ctx := m.roster, m.ctx
	return func() tea.Msg {
		return deleteDoneMsg{err: r.DeleteEntry(ctx, id)}
	}
}

// ordered is savory then sweet, the order the cursor walks.
func (m Model) ordered() []models.Dish {
	savory, sweet := services.Partition(m.entries)
	return append(savory, sweet...)
}

func (m Model) View() string {
	if m.loading {
		return mutedStyle.Render("Loading...")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Potluck sign-up"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Sign up with what you are bringing to the party!"))
	b.WriteString("\n\n")

	b.WriteString(m.name.View() + "\n")
	b.WriteString(m.dish.View() + "\n")
	b.WriteString(m.categoryView() + "\n")
	if m.submitting {
		b.WriteString(mutedStyle.Render("Adding...") + "\n")
	}
	b.WriteString("\n")

	view := services.BuildView(m.entries)
	selected := ""
	if items := m.ordered(); m.focus == focusList && m.cursor < len(items) {
		selected = items[m.cursor].ID
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.columnView(models.CategorySavory, view.Savory, selected),
		m.columnView(models.CategorySweet, view.Sweet, selected),
	))
	b.WriteString("\n")
	if view.Total > 0 {
		b.WriteString(fmt.Sprintf("%s %d\n", accentStyle.Render("Total dishes:"), view.Total))
	}

	if m.alert != "" {
		b.WriteString("\n" + alertStyle.Render(errorStyle.Render(m.alert)+"\n"+helpStyle.Render("enter to dismiss")) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("tab next field • enter add • ctrl+t savory/sweet • d remove (list) • esc quit"))
	return b.String()
}

func (m Model) categoryView() string {
	savory, sweet := "( ) Savory", "( ) Sweet"
	if m.category == models.CategorySweet {
		sweet = sweetStyle.Render("(•) Sweet")
	} else {
		savory = savoryStyle.Render("(•) Savory")
	}
	return "Type: " + savory + "   " + sweet
}

func (m Model) columnView(cat models.Category, dishes []models.Dish, selected string) string {
	style := savoryStyle
	if cat == models.CategorySweet {
		style = sweetStyle
	}
	lines := []string{fmt.Sprintf("%s (%d)", style.Render(cat.Label()), len(dishes))}
	if len(dishes) == 0 {
		lines = append(lines, mutedStyle.Render(emptyText(cat)))
	}
	for _, d := range dishes {
		line := dishLine(d)
		if d.ID == selected {
			line = selectedStyle.Render("> " + d.DishName + " by " + d.Name)
		}
		lines = append(lines, line)
	}
	return columnStyle.Render(strings.Join(lines, "\n"))
}

// Run shows the board until the user quits, then disposes the roster.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if m.roster != nil {
		if derr := m.roster.Dispose(); err == nil {
			err = derr
		}
	}
	return err
}
