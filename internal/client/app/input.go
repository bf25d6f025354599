package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/client/config"
	"golang.org/x/term"
)

// test seams for the terminal
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
	stdinFd      = func() int { return int(os.Stdin.Fd()) }
)

var ErrNoAccessToken = errors.New("access token is required in grpc mode")

// PromptAccessToken asks for the access token without echo when gRPC mode is
// configured without one and stdin is a terminal. Prompts go to w.
func PromptAccessToken(cfg *config.Config, w io.Writer) error {
	if cfg.TargetMode != config.TargetModeGRPC || cfg.AccessToken != "" {
		return nil
	}

	fd := stdinFd()
	if !isTerminal(fd) {
		return ErrNoAccessToken
	}

	if _, err := fmt.Fprint(w, "Enter access token: "); err != nil {
		return err
	}
	token, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}

	cfg.AccessToken = strings.TrimSpace(string(token))
	if cfg.AccessToken == "" {
		return ErrNoAccessToken
	}
	return nil
}
