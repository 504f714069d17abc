package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rfp/internal/retrieval"
)

// SearchFunc runs one query. The caller binds it to its context, so a
// cancelled program stops pending searches.
type SearchFunc func(query string, n int) ([]retrieval.Passage, error)

// resultsMsg carries the outcome of a search started by submit.
type resultsMsg struct {
	query    string
	passages []retrieval.Passage
	err      error
}

// Model is the Bubble Tea model for the search browser.
type Model struct {
	search    SearchFunc
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	results   []retrieval.Passage
	header    string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a model. header is shown under the title, typically the collection stats.
func New(search SearchFunc, topK int, header string) Model {
	if topK <= 0 {
		topK = 10
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Search past RFP responses and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		search:   search,
		topK:     topK,
		input:    ti,
		viewport: viewport.New(0, 0),
		header:   header,
		status:   "Loaded. Type to search.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and search result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg), nil
	case resultsMsg:
		return m.showResults(msg), nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m.status = fmt.Sprintf("Searching for %q...", q)
				return m, m.submit(q)
			}
		case tea.KeyDown:
			if len(m.results) > 0 {
				return m.move(1), nil
			}
		case tea.KeyUp:
			if len(m.results) > 0 {
				return m.move(-1), nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(q string) tea.Cmd {
	search, n := m.search, m.topK
	return func() tea.Msg {
		res, err := search(q, n)
		return resultsMsg{query: q, passages: res, err: err}
	}
}

func (m Model) showResults(msg resultsMsg) Model {
	if msg.err != nil {
		m.status = "Error: " + msg.err.Error()
		m.results = nil
	} else {
		m.status = fmt.Sprintf("%d results for %q (up/down to browse)", len(msg.passages), msg.query)
		m.results = msg.passages
		m.lastQuery = msg.query
	}
	m.cursor = 0
	m.viewport.SetContent(m.renderCurrentResult())
	return m
}

func (m Model) move(delta int) Model {
	n := len(m.results)
	m.cursor = (m.cursor + delta + n) % n
	m.viewport.SetContent(m.renderCurrentResult())
	return m
}

// resize fits the viewport between the title block and the query box.
func (m Model) resize(msg tea.WindowSizeMsg) Model {
	m.ready = true
	_, resultFrame := resultBoxStyle.GetFrameSize()
	_, queryFrame := queryBoxStyle.GetFrameSize()
	const chrome = 2 + 1 + 1 // title and header, status, spacer
	m.viewport.Width = max(20, msg.Width)
	m.viewport.Height = max(3, msg.Height-chrome-queryFrame-resultFrame)
	m.viewport.SetContent(m.renderCurrentResult())
	return m
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := lipgloss.NewStyle().Bold(true).Render("RFP Knowledge Base")
	header := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.header)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return title + "\n" + header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	p := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  relevance=%.2f  source=%s", m.cursor+1, len(m.results), p.Relevance, p.Source)
	if p.Section != "" {
		title += "  section=" + p.Section
	}
	body := highlightBestSentence(p.Text, m.lastQuery)
	return title + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
