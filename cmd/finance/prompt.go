package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads secrets, hiding input on a terminal.
type prompter struct {
	in  io.Reader
	out io.Writer

	// lines buffers non-terminal input across prompts.
	lines *bufio.Reader
}

func (p *prompter) secret(label string) (string, error) {
	fmt.Fprint(p.out, label)
	defer fmt.Fprintln(p.out)

	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	if p.lines == nil {
		p.lines = bufio.NewReader(p.in)
	}
	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
