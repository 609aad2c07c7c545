package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter asks questions on a terminal. A closed input answers every
// question with no.
type Prompter struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
	mu    sync.Mutex
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

func (p *Prompter) Confirm(ctx context.Context, message string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "%s [y/N]: ", message)
	line, ok, err := p.readLine(ctx)
	if err != nil || !ok {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// PromptName returns the default on an empty line and ok=false when the
// input is closed or the answer is a single "-".
func (p *Prompter) PromptName(ctx context.Context, defaultName string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "Route name [%s] (- to cancel): ", defaultName)
	line, ok, err := p.readLine(ctx)
	if err != nil || !ok {
		return "", false, err
	}
	switch line {
	case "-":
		return "", false, nil
	case "":
		return defaultName, true, nil
	default:
		return line, true, nil
	}
}

func (p *Prompter) Notify(_ context.Context, message string) {
	fmt.Fprintf(p.out, "! %s\n", message)
}

// Commands exposes the input lines typed while no question is pending. The
// caller must stop receiving from it before a question is asked.
func (p *Prompter) Commands() <-chan string {
	p.once.Do(p.startReader)
	return p.lines
}

func (p *Prompter) readLine(ctx context.Context) (string, bool, error) {
	p.once.Do(p.startReader)
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", false, ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			fmt.Fprintln(p.out)
		}
		return strings.TrimSpace(line), ok, nil
	}
}

// startReader feeds input lines to the prompter. A line typed while no
// question is pending waits for the next one.
func (p *Prompter) startReader() {
	p.lines = make(chan string)
	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
	}()
}

// AutoPrompter answers without a terminal: it saves every route under the
// suggested name and restores any unsaved route.
type AutoPrompter struct {
	Out io.Writer
}

func (a AutoPrompter) Confirm(_ context.Context, message string) (bool, error) {
	a.print("%s [y/N]: y\n", message)
	return true, nil
}

func (a AutoPrompter) PromptName(_ context.Context, defaultName string) (string, bool, error) {
	a.print("Route name: %s\n", defaultName)
	return defaultName, true, nil
}

func (a AutoPrompter) Notify(_ context.Context, message string) {
	a.print("! %s\n", message)
}

func (a AutoPrompter) print(format string, args ...any) {
	if a.Out != nil {
		fmt.Fprintf(a.Out, format, args...)
	}
}
