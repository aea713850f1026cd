package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/five82/melinda/internal/config"
)

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func readStdinPassword() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// promptPassword asks for the password without echo. Without a terminal the
// request is refused rather than sent with an empty credential.
func (e *environment) promptPassword() (string, error) {
	if e.isTerminal == nil || !e.isTerminal() {
		return "", fmt.Errorf("password is not configured (use --password or %s)", config.EnvPassword)
	}
	fmt.Fprintf(e.stderr, "Password for %s: ", e.cfg.Username)
	pw, err := e.readPassword()
	fmt.Fprintln(e.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(string(pw), "\r\n")
	if password == "" {
		return "", fmt.Errorf("empty password")
	}
	return password, nil
}
