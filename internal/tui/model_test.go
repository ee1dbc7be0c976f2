package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/chain"
	"docqa/internal/domain"
	"docqa/internal/generation"
)

// drive runs cmd and feeds its messages back until the model stops asking.
func drive(t *testing.T, m tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		require.Less(t, i, 100, "stream did not finish")
		m, cmd = m.Update(cmd())
	}
	return m
}

func ask(t *testing.T, m tea.Model, q string) (tea.Model, tea.Cmd) {
	t.Helper()
	mm := m.(Model)
	mm.input.SetValue(q)
	return mm.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestChatStreamsAnswerWithSources(t *testing.T) {
	var got string
	askFn := func(_ context.Context, q string) (*chain.Answer, error) {
		got = q
		return &chain.Answer{
			Sources: []domain.TextUnit{
				{Content: "Revenue grew. The dividend policy is unchanged.", Position: domain.PageNumber(4)},
				{Content: "Other text.", Position: domain.PageNumber(1)},
			},
			Stream: generation.Fragments("The policy ", "is unchanged."),
		}, nil
	}
	var m tea.Model = New(context.Background(), askFn, "report.pdf", "A summary.")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})

	m, cmd := ask(t, m, "  dividend policy?  ")
	require.NotNil(t, cmd)
	m = drive(t, m, cmd)

	assert.Equal(t, "dividend policy?", got)
	mm := m.(Model)
	assert.Equal(t, "Done.", mm.status)
	assert.Nil(t, mm.stream)
	out := mm.renderTranscript()
	assert.Contains(t, out, "A: The policy is unchanged.")
	assert.Contains(t, out, "Source 1/2 (page 4)")
	assert.Contains(t, mm.View(), "A summary.")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Contains(t, m.(Model).renderTranscript(), "Source 2/2 (page 1)")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Contains(t, m.(Model).renderTranscript(), "Source 1/2")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Contains(t, m.(Model).renderTranscript(), "Source 2/2")
}

func TestChatShowsAnswerError(t *testing.T) {
	askFn := func(context.Context, string) (*chain.Answer, error) {
		return nil, domain.E(domain.KindEmptyIndex, "answer", errors.New("nothing retrieved"))
	}
	var m tea.Model = New(context.Background(), askFn, "doc", "")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m, cmd := ask(t, m, "anything")
	m = drive(t, m, cmd)

	mm := m.(Model)
	assert.True(t, strings.HasPrefix(mm.status, "Error: "))
	assert.Contains(t, mm.renderTranscript(), "nothing retrieved")
}

func TestChatIgnoresEmptyQuestion(t *testing.T) {
	called := false
	askFn := func(context.Context, string) (*chain.Answer, error) {
		called = true
		return nil, nil
	}
	var m tea.Model = New(context.Background(), askFn, "doc", "")
	_, cmd := ask(t, m, "   ")
	assert.Nil(t, cmd)
	assert.False(t, called)
}

func TestHighlightBestSentencePicksOverlap(t *testing.T) {
	text := "Revenue grew strongly. The dividend policy is unchanged. Outlook is stable."
	out := highlightBestSentence(text, "what is the dividend policy")
	assert.Contains(t, out, highlightStyle.Render("The dividend policy is unchanged."))
	assert.Contains(t, out, "Revenue grew strongly.")
}

func TestHighlightBestSentenceKeepsUnterminatedTail(t *testing.T) {
	text := "Revenue rose. The board approved a new dividend policy that returns cash"
	out := highlightBestSentence(text, "dividend policy")
	assert.Contains(t, out, "Revenue rose.")
	assert.Contains(t, out, highlightStyle.Render("The board approved a new dividend policy that returns cash"))
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", " Two!", "three"}, splitSentences("One. Two! three"))
	assert.Equal(t, []string{"no terminator"}, splitSentences("  no terminator "))
	assert.Equal(t, []string{"Done."}, splitSentences("Done.  "))
}
