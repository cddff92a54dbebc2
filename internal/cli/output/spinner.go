package output

import (
	"context"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type stopMsg struct{}

type spinnerModel struct {
	sp      spinner.Model
	message string
	done    bool
}

func (m spinnerModel) Init() tea.Cmd {
	return m.sp.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case stopMsg:
		m.done = true
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.sp, cmd = m.sp.Update(msg)
	return m, cmd
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return m.sp.View() + " " + m.message
}

// Spinner shows progress on stderr while a long scan runs. It only
// animates in text mode on a terminal and is silent otherwise.
type Spinner struct {
	r       *Renderer
	message string

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewSpinner creates a spinner with the given message.
func (r *Renderer) NewSpinner(message string) *Spinner {
	return &Spinner{r: r, message: message}
}

func (s *Spinner) animated() bool {
	return s.r.isTTY && s.r.EffectiveMode() == ModeText && IsTerminal(s.r.errOut)
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.StartContext(context.Background())
}

// StartContext begins the animation and stops it when ctx is done.
func (s *Spinner) StartContext(ctx context.Context) {
	if !s.animated() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program != nil {
		return
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.r.styles.Info

	s.program = tea.NewProgram(spinnerModel{sp: sp, message: s.message},
		tea.WithOutput(s.r.errOut),
		tea.WithInput(nil),
		tea.WithContext(ctx),
	)
	s.done = make(chan struct{})
	go func(p *tea.Program, done chan struct{}) {
		defer close(done)
		_, _ = p.Run()
	}(s.program, s.done)
}

// Stop ends the animation without printing anything.
func (s *Spinner) Stop() {
	s.mu.Lock()
	p, done := s.program, s.done
	s.program = nil
	s.mu.Unlock()
	if p == nil {
		return
	}
	p.Send(stopMsg{})
	<-done
}

// Success stops the spinner and prints a success line.
func (s *Spinner) Success(msg string) {
	s.Stop()
	s.r.Success(msg)
}

// Fail stops the spinner and prints an error line.
func (s *Spinner) Fail(msg string) {
	s.Stop()
	s.r.Error(msg)
}

// Spin runs fn while a spinner shows message.
func (r *Renderer) Spin(ctx context.Context, message string, fn func(ctx context.Context) error) error {
	s := r.NewSpinner(message)
	s.StartContext(ctx)
	defer s.Stop()
	return fn(ctx)
}
