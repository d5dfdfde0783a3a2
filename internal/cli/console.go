package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"RucFilter/internal/domain"
)

// Console is the terminal operator: it answers run confirmations, waits for
// the human to clear browser challenges and reads menu choices.
// A single goroutine owns the input so prompts never race for lines.
type Console struct {
	out         io.Writer
	interactive bool

	mu    sync.Mutex
	once  sync.Once
	in    io.Reader
	lines chan string
}

// NewConsole reads answers from in and prints prompts to out. When
// interactive is false nobody can solve a challenge, so AwaitResume fails fast.
func NewConsole(in io.Reader, out io.Writer, interactive bool) *Console {
	return &Console{in: in, out: out, interactive: interactive}
}

func (c *Console) start() {
	c.once.Do(func() {
		c.lines = make(chan string)
		go func() {
			defer close(c.lines)
			scanner := bufio.NewScanner(c.in)
			for scanner.Scan() {
				c.lines <- scanner.Text()
			}
		}()
	})
}

// ReadLine prints prompt and returns the next input line.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	c.start()
	c.mu.Lock()
	defer c.mu.Unlock()

	if prompt != "" {
		fmt.Fprint(c.out, prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// Confirm asks a yes/no question; anything but an explicit yes declines.
func (c *Console) Confirm(ctx context.Context, prompt string) bool {
	answer, err := c.ReadLine(ctx, prompt+" (s/n): ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "s", "si", "sí", "y", "yes":
		return true
	default:
		return false
	}
}

// AwaitResume blocks until the operator presses ENTER.
func (c *Console) AwaitResume(ctx context.Context, prompt string) error {
	if !c.interactive {
		return fmt.Errorf("%w: %s (no interactive terminal)", domain.ErrChallenge, prompt)
	}
	if _, err := c.ReadLine(ctx, "\n"+prompt+"\nPresiona ENTER para continuar..."); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrChallenge, err)
	}
	return nil
}
