package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

var errNotInteractive = errors.New("stdin is not a terminal; pass --yes to confirm")

// stdinIsTerminal reports whether prompts can be answered.
func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type answer struct {
	line string
	err  error
}

// prompter reads line answers from in and writes questions to out. Lines
// are read on a goroutine so a cancelled context interrupts a pending ask.
type prompter struct {
	in      *bufio.Reader
	out     io.Writer
	once    sync.Once
	answers chan answer
	err     error
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, answers: make(chan answer)}
}

func (p *prompter) readLines() {
	for {
		line, err := p.in.ReadString('\n')
		p.answers <- answer{line: line, err: err}
		if err != nil {
			return
		}
	}
}

// ask prints question and returns the trimmed answer. It returns ctx.Err()
// when ctx is done first, and io.EOF once input is exhausted and no partial
// line remains.
func (p *prompter) ask(ctx context.Context, question string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprint(p.out, question)
	p.once.Do(func() { go p.readLines() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-p.answers:
		if a.err != nil {
			p.err = a.err
			if !errors.Is(a.err, io.EOF) || a.line == "" {
				return "", a.err
			}
		}
		return strings.TrimSpace(a.line), nil
	}
}

// confirm asks a yes/no question that defaults to no.
func (p *prompter) confirm(ctx context.Context, question string) (bool, error) {
	reply, err := p.ask(ctx, question+" [y/N] ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(reply) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
