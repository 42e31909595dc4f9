package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"prompt-form/internal/domain"
)

const defaultTimeout = 2 * time.Minute

// Event is a form submission event.
type Event interface {
	PreventDefault()
}

// Form delivers submit events to a registered listener.
type Form interface {
	OnSubmit(listener func(Event))
}

// PromptSource is the text input read at submission time.
type PromptSource interface {
	Value() string
}

// Display is the element the submitter writes rendered content into.
type Display interface {
	Render(content string)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (domain.Reply, error)
}

// Renderer turns each phase of a submission into display content.
type Renderer interface {
	Loading() string
	Result(text string) string
	Failure(err *Error) string
}

type applicationError interface {
	HTTPStatusCode() int
	ServiceMessage() string
}

type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

// Outcome reports how one submission settled. Applied is false when a newer
// submission had already taken over the display.
type Outcome struct {
	Token   uint64
	Prompt  string
	Text    string
	Err     *Error
	Applied bool
}

// Submitter sends one prompt per submission and renders the answer. Every
// submission takes the next token; only the latest token may write the final
// display, and starting a submission cancels the one in flight.
type Submitter struct {
	input    PromptSource
	display  Display
	gen      Generator
	renderer Renderer
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	latest uint64
	state  State
	cancel context.CancelFunc
}

type Option func(*Submitter)

// WithTimeout bounds each submission. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Submitter) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithRenderer(r Renderer) Option {
	return func(s *Submitter) {
		s.renderer = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Submitter) {
		s.logger = l
	}
}

func NewSubmitter(input PromptSource, display Display, gen Generator, opts ...Option) (*Submitter, error) {
	if input == nil {
		return nil, errors.New("usecase: prompt input must not be nil")
	}
	if display == nil {
		return nil, errors.New("usecase: display must not be nil")
	}
	if gen == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	s := &Submitter{
		input:    input,
		display:  display,
		gen:      gen,
		renderer: TextRenderer{},
		timeout:  defaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		return nil, errors.New("usecase: renderer must not be nil")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Bind creates a Submitter over the given elements and registers it as the
// form's submit listener.
func Bind(form Form, input PromptSource, display Display, gen Generator, opts ...Option) (*Submitter, error) {
	if form == nil {
		return nil, errors.New("usecase: form must not be nil")
	}
	s, err := NewSubmitter(input, display, gen, opts...)
	if err != nil {
		return nil, err
	}
	form.OnSubmit(func(ev Event) {
		s.HandleSubmit(ev)
	})
	return s, nil
}

// HandleSubmit suppresses the default form action and submits the current
// input value. Everything before the network call happens synchronously.
func (s *Submitter) HandleSubmit(ev Event) <-chan Outcome {
	if ev != nil {
		ev.PreventDefault()
	}
	return s.Submit(context.Background(), s.input.Value())
}

// Submit sends prompt and renders the result once it settles. The returned
// channel yields exactly one Outcome.
func (s *Submitter) Submit(ctx context.Context, prompt string) <-chan Outcome {
	reqCtx, cancelTimeout := context.WithTimeout(ctx, s.timeout)
	reqCtx, cancel := context.WithCancel(reqCtx)

	s.mu.Lock()
	s.latest++
	token := s.latest
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.state = StateSending
	s.display.Render(s.renderer.Loading())
	s.mu.Unlock()

	done := make(chan Outcome, 1)
	go func() {
		defer cancelTimeout()
		defer cancel()

		out := Outcome{Token: token, Prompt: prompt}
		var content string
		reply, err := s.await(reqCtx, prompt)
		if err != nil {
			out.Err = classify(err)
			content = s.renderer.Failure(out.Err)
		} else {
			out.Text = reply.Text
			content = s.renderer.Result(reply.Text)
		}

		s.mu.Lock()
		latest := s.latest
		if token == latest {
			s.display.Render(content)
			s.state = StateIdle
			s.cancel = nil
			out.Applied = true
		}
		s.mu.Unlock()

		switch {
		case !out.Applied:
			s.logger.Debug("dropping stale response", "token", token, "latest", latest)
		case out.Err != nil:
			s.logger.Warn("generation failed", "token", token, "code", out.Err.Code, "reason", out.Err.Reason, "err", out.Err.Err)
		default:
			s.logger.Debug("generation complete", "token", token, "chars", len(out.Text))
		}
		done <- out
	}()
	return done
}

// Cancel aborts the submission in flight, if any.
func (s *Submitter) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Submitter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// await runs the generator but stops waiting as soon as ctx ends, even if the
// generator does not watch ctx itself.
func (s *Submitter) await(ctx context.Context, prompt string) (domain.Reply, error) {
	type result struct {
		reply domain.Reply
		err   error
	}
	results := make(chan result, 1)
	go func() {
		reply, err := s.gen.Generate(ctx, prompt)
		results <- result{reply: reply, err: err}
	}()

	select {
	case r := <-results:
		return r.reply, r.err
	case <-ctx.Done():
		return domain.Reply{}, ctx.Err()
	}
}

func classify(err error) *Error {
	var netErr net.Error
	var appErr applicationError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrorTimedOut, "request_timeout", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return newError(ErrorTimedOut, "transport_timeout", err)
	case errors.Is(err, context.Canceled):
		return newError(ErrorCanceled, "request_canceled", err)
	case errors.Is(err, domain.ErrMalformedResponse):
		return newError(ErrorDecode, "malformed_response", err)
	case errors.As(err, &appErr):
		e := newError(ErrorApplication, "service_error", err)
		e.Message = appErr.ServiceMessage()
		return e
	default:
		return newError(ErrorTransport, "request_failed", err)
	}
}
