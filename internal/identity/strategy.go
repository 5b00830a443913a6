package identity

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Strategy settles cases the lookup alone cannot: a name with no match and
// a name with several plausible matches.
type Strategy interface {
	// CorrectName returns a replacement name to look up, or ok=false to give
	// up on the record.
	CorrectName(ctx context.Context, first, last string, year int) (newFirst, newLast string, ok bool, err error)
	// Choose picks one of several candidates, or ok=false when none apply.
	Choose(ctx context.Context, first, last string, year int, candidates []Candidate) (choice Candidate, ok bool, err error)
}

// AutoFail declines every correction and choice. Used in batch runs.
type AutoFail struct{}

func (AutoFail) CorrectName(context.Context, string, string, int) (string, string, bool, error) {
	return "", "", false, nil
}

func (AutoFail) Choose(context.Context, string, string, int, []Candidate) (Candidate, bool, error) {
	return Candidate{}, false, nil
}

// Console prompts an operator over a line-oriented reader and writer.
type Console struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewConsole creates a console strategy, typically over os.Stdin/os.Stdout.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewScanner(in), out: out}
}

func (c *Console) readLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(c.out, prompt)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

// CorrectName asks for a corrected first and last name. Entering "exit"
// (or closing input) skips the record.
func (c *Console) CorrectName(ctx context.Context, first, last string, year int) (string, string, bool, error) {
	fmt.Fprintf(c.out, "Could not find player %s %s (%d). Enter the correct first and last name, or 'exit' to skip this record.\n", first, last, year)

	nf, err := c.readLine(ctx, "First Name: ")
	if err == io.EOF {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	if nf == "" || strings.EqualFold(nf, "exit") {
		return "", "", false, nil
	}
	nl, err := c.readLine(ctx, "Last Name: ")
	if err == io.EOF {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	if nl == "" || strings.EqualFold(nl, "exit") {
		return "", "", false, nil
	}
	return nf, nl, true, nil
}

// Choose lists the candidates and reads an index. -1 (or closing input)
// skips the record; invalid input is asked again.
func (c *Console) Choose(ctx context.Context, first, last string, year int, candidates []Candidate) (Candidate, bool, error) {
	fmt.Fprintf(c.out, "Multiple players found for %s %s (%d). Select the correct player, or -1 if none apply.\n", first, last, year)
	for i, cand := range candidates {
		fmt.Fprintf(c.out, "  [%d] %s\n", i, cand)
	}
	for {
		line, err := c.readLine(ctx, "Index: ")
		if err == io.EOF {
			return Candidate{}, false, nil
		}
		if err != nil {
			return Candidate{}, false, err
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < -1 || n >= len(candidates) {
			fmt.Fprintf(c.out, "Invalid choice %q\n", line)
			continue
		}
		if n == -1 {
			return Candidate{}, false, nil
		}
		return candidates[n], true, nil
	}
}
