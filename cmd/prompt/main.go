// Command prompt submits prompts to a generation endpoint from a terminal.
//
//	prompt [-url URL] [-timeout D] [-debug] [text...]
//
// With arguments the joined text is submitted once; otherwise every line of
// standard input is a submission.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"prompt-form/internal/integrations/generate"
	"prompt-form/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("prompt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", "http://localhost:8080", "base URL of the generation endpoint")
	timeout := fs.Duration("timeout", 2*time.Minute, "per-submission timeout")
	debug := fs.Bool("debug", false, "log request details to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelError
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if u, err := url.Parse(*baseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fmt.Fprintf(stderr, "invalid -url %q: want an absolute http(s) URL\n", *baseURL)
		return 2
	}
	client, err := generate.NewClient(*baseURL)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	logger.Debug("using endpoint", "url", client.URL())

	input := &lineInput{}
	display := &terminal{out: stdout, status: stderr}
	sub, err := usecase.NewSubmitter(input, display, client,
		usecase.WithTimeout(*timeout),
		usecase.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	stopCancel := context.AfterFunc(ctx, sub.Cancel)
	defer stopCancel()

	submit := func(text string) usecase.Outcome {
		input.set(text)
		return <-sub.HandleSubmit(nil)
	}

	var last usecase.Outcome
	if fs.NArg() > 0 {
		last = submit(strings.Join(fs.Args(), " "))
	} else {
		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			if ctx.Err() != nil {
				break
			}
			last = submit(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintln(stderr, "read input:", err)
			return 1
		}
	}

	if last.Err != nil {
		return 1
	}
	return 0
}

// lineInput holds the prompt for the next submission.
type lineInput struct {
	mu   sync.Mutex
	text string
}

func (l *lineInput) set(text string) {
	l.mu.Lock()
	l.text = text
	l.mu.Unlock()
}

func (l *lineInput) Value() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}

// terminal writes the loading line to status and everything else to out.
type terminal struct {
	mu     sync.Mutex
	out    io.Writer
	status io.Writer
}

func (t *terminal) Render(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.out
	if content == usecase.LoadingText {
		w = t.status
	}
	fmt.Fprintln(w, content)
}
