package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/chain"
	"docqa/internal/domain"
	"docqa/internal/generation"
)

// SnippetChars is how much of each source passage is shown.
const SnippetChars = 500

// AskFunc answers one question about the loaded document.
type AskFunc func(ctx context.Context, question string) (*chain.Answer, error)

type turn struct {
	question string
	sources  []domain.TextUnit
	answer   strings.Builder
	err      error
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx      context.Context
	ask      AskFunc
	title    string
	summary  string
	input    textinput.Model
	viewport viewport.Model
	turns    []*turn
	stream   *generation.Stream
	status   string
	cursor   int
	ready    bool
}

type answerMsg struct {
	answer *chain.Answer
	err    error
}

type fragmentMsg struct {
	stream *generation.Stream
	text   string
}

type streamEndMsg struct {
	stream *generation.Stream
	err    error
}

// New creates a chat over ask. summary may be empty.
func New(ctx context.Context, ask AskFunc, title, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, ask: ask, title: title, summary: summary, input: ti, viewport: vp,
		status: "Ready to query. Esc stops an answer, up/down browse sources."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and streaming events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil

	case answerMsg:
		t := m.current()
		if msg.err != nil {
			t.err = msg.err
			m.status = "Error: " + msg.err.Error()
			m.refresh()
			return m, nil
		}
		t.sources = msg.answer.Sources
		m.cursor = 0
		m.stream = msg.answer.Stream
		m.status = "Answering..."
		m.refresh()
		return m, nextFragment(m.stream)

	case fragmentMsg:
		if msg.stream != m.stream {
			return m, nil
		}
		m.current().answer.WriteString(msg.text)
		m.refresh()
		return m, nextFragment(m.stream)

	case streamEndMsg:
		if msg.stream != m.stream {
			return m, nil
		}
		m.stream = nil
		switch {
		case msg.err == nil:
			m.status = "Done."
		case errors.Is(msg.err, generation.ErrIdleTimeout):
			m.current().err = msg.err
			m.status = "Answer stalled; showing what arrived."
		default:
			m.current().err = msg.err
			m.status = "Error: " + msg.err.Error()
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.stream != nil {
				m.stream.Close()
			}
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.stream != nil {
				return m, nil
			}
			m.input.SetValue("")
			m.turns = append(m.turns, &turn{question: q})
			m.status = "Retrieving..."
			m.refresh()
			return m, m.askCmd(q)
		case "esc":
			if m.stream != nil {
				m.stream.Close()
				m.stream = nil
				m.status = "Stopped."
				m.refresh()
			}
			return m, nil
		case "down":
			if t := m.last(); t != nil && len(t.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(t.sources)
				m.refresh()
				return m, nil
			}
		case "up":
			if t := m.last(); t != nil && len(t.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(t.sources)) % len(t.sources)
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) askCmd(q string) tea.Cmd {
	ctx, ask := m.ctx, m.ask
	return func() tea.Msg {
		ans, err := ask(ctx, q)
		return answerMsg{answer: ans, err: err}
	}
}

func nextFragment(s *generation.Stream) tea.Cmd {
	return func() tea.Msg {
		f, err := s.Next()
		if errors.Is(err, io.EOF) {
			return streamEndMsg{stream: s}
		}
		if err != nil {
			return streamEndMsg{stream: s, err: err}
		}
		return fragmentMsg{stream: s, text: f}
	}
}

func (m *Model) current() *turn {
	if len(m.turns) == 0 {
		m.turns = append(m.turns, &turn{})
	}
	return m.turns[len(m.turns)-1]
}

func (m Model) last() *turn {
	if len(m.turns) == 0 {
		return nil
	}
	return m.turns[len(m.turns)-1]
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render(m.title)
	summary := summaryStyle.Render(m.summary)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("Q: " + t.question))
		if i == len(m.turns)-1 && len(t.sources) > 0 {
			s := t.sources[m.cursor]
			fmt.Fprintf(&b, "\n%s\n%s",
				sourceTitleStyle.Render(fmt.Sprintf("Source %d/%d (%s)", m.cursor+1, len(t.sources), s.Position)),
				highlightBestSentence(domain.Snippet(s.Content, SnippetChars), t.question))
		}
		if t.answer.Len() > 0 {
			b.WriteString("\nA: " + t.answer.String())
		}
		if t.err != nil {
			b.WriteString("\n" + errorStyle.Render(t.err.Error()))
		}
	}
	return b.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	summaryStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle      = lipgloss.NewStyle().Bold(true)
	sourceTitleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	unicodeWordRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// highlightBestSentence emphasizes the sentence sharing most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := splitSentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
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

// splitSentences splits text at terminal punctuation. Trailing text without
// a terminator is kept as a final sentence.
func splitSentences(text string) []string {
	var out []string
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		out = append(out, text[loc[0]:loc[1]])
		end = loc[1]
	}
	if tail := strings.TrimSpace(text[end:]); tail != "" {
		out = append(out, tail)
	}
	return out
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
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
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
