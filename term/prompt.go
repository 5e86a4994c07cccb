package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	xterm "golang.org/x/term"
)

var (
	input  io.Reader = os.Stdin
	reader *bufio.Reader
)

// SetInput replaces the standard input used by the prompts
func SetInput(r io.Reader) {
	input = r
	reader = nil
}

func lineReader() *bufio.Reader {
	if reader == nil {
		reader = bufio.NewReader(input)
	}
	return reader
}

// Confirm asks a yes/no question. An empty answer (or end of input) returns defaultAnswer.
func Confirm(question string, defaultAnswer bool) bool {
	choices := "y/N"
	if defaultAnswer {
		choices = "Y/n"
	}
	pterm.FgYellow.Printf("%s (%s) ", question, choices)
	line, err := lineReader().ReadString('\n')
	if err != nil && line == "" {
		fmt.Println()
		return defaultAnswer
	}
	return parseAnswer(line, defaultAnswer)
}

func parseAnswer(line string, defaultAnswer bool) bool {
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "" {
		return defaultAnswer
	}
	return answer[0] == 'y'
}

// Password reads a secret from the terminal without echo. When standard input is not a terminal,
// it reads a line instead.
func Password(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if file, ok := input.(*os.File); ok && xterm.IsTerminal(int(file.Fd())) {
		secret, err := xterm.ReadPassword(int(file.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("cannot read password: %w", err)
		}
		return string(secret), nil
	}
	line, err := lineReader().ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("cannot read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
