package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrEmptyInput is returned when a prompt receives nothing.
var ErrEmptyInput = errors.New("no input provided")

// ReadSecret reads a password. On a terminal the input is not echoed;
// otherwise the first line of in is used so passwords can be piped.
func ReadSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, prompt)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if len(secret) == 0 {
			return "", ErrEmptyInput
		}
		return string(secret), nil
	}
	return ReadLine(in)
}

// ReadLine returns the first line of in without its line ending.
func ReadLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", ErrEmptyInput
	}
	return line, nil
}
