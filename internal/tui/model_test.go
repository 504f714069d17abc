package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfp/internal/retrieval"
)

type fakeSearcher struct {
	passages []retrieval.Passage
	err      error
	gotQuery string
	gotN     int
}

func (f *fakeSearcher) search(q string, n int) ([]retrieval.Passage, error) {
	f.gotQuery = q
	f.gotN = n
	return f.passages, f.err
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func search(t *testing.T, m Model, q string) Model {
	t.Helper()
	m.input.SetValue(q)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil || !strings.HasPrefix(m.status, "Searching for") {
		return m
	}
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestModel_SearchAndBrowse(t *testing.T) {
	f := &fakeSearcher{passages: []retrieval.Passage{
		{Rank: 1, Text: "The proposed timeline is 6 months.", Source: "a.pdf", Relevance: 0.9},
		{Rank: 2, Text: "Budget is fixed.", Source: "b.pdf", Section: "budget", Relevance: 0.4},
	}}
	m := sized(t, New(f.search, 3, "rfp_documents: 2 chunks"))

	m = search(t, m, "timeline")
	assert.Equal(t, "timeline", f.gotQuery)
	assert.Equal(t, 3, f.gotN)
	assert.Contains(t, m.status, "2 results")
	assert.Contains(t, m.renderCurrentResult(), "Result 1/2")
	assert.Contains(t, m.renderCurrentResult(), "source=a.pdf")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderCurrentResult(), "section=budget")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)

	assert.Contains(t, m.View(), "RFP Knowledge Base")
	assert.Contains(t, m.View(), "rfp_documents: 2 chunks")
}

func TestModel_SearchError(t *testing.T) {
	m := sized(t, New((&fakeSearcher{err: errors.New("index closed")}).search, 0, ""))

	m = search(t, m, "anything")
	assert.Equal(t, "Error: index closed", m.status)
	assert.Equal(t, "No results yet.", m.renderCurrentResult())
}

func TestModel_EmptyQueryDoesNotSearch(t *testing.T) {
	f := &fakeSearcher{}
	m := sized(t, New(f.search, 0, ""))

	search(t, m, "   ")
	assert.Empty(t, f.gotQuery)
}

func TestModel_Quit(t *testing.T) {
	m := New((&fakeSearcher{}).search, 0, "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_SearchRunsAsCommand(t *testing.T) {
	f := &fakeSearcher{passages: []retrieval.Passage{{Rank: 1, Text: "Monthly reports.", Source: "a.pdf"}}}
	m := sized(t, New(f.search, 2, ""))

	m.input.SetValue("reports")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, f.gotQuery)
	assert.Empty(t, next.(Model).results)

	msg := cmd()
	assert.Equal(t, "reports", f.gotQuery)
	next, _ = next.Update(msg)
	assert.Len(t, next.(Model).results, 1)
}

func TestHighlightBestSentence_PicksOverlap(t *testing.T) {
	text := "Budget is fixed. The proposed timeline is six months. Staff are certified."
	out := highlightBestSentence(text, "project timeline")
	assert.Contains(t, out, "Budget is fixed.")
	assert.Contains(t, out, "timeline is six months.")
	assert.Equal(t, 2, tokenOverlapScore(toTokenSet("proposed timeline"), "The proposed timeline is six months."))
}
