package github

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

type TokenSource string

const (
	TokenSourceExplicit TokenSource = "explicit"
	TokenSourceEnv      TokenSource = "env:GITHUB_TOKEN"
	TokenSourceGHCLI    TokenSource = "gh"
)

const ghLookupTimeout = 5 * time.Second

// ResolveAuthToken returns the first token found in: the provided value,
// GITHUB_TOKEN, then `gh auth token`. An empty token with a nil error means
// none was found. The token is never logged.
func ResolveAuthToken(ctx context.Context, provided string) (string, TokenSource, error) {
	if tok := strings.TrimSpace(provided); tok != "" {
		return tok, TokenSourceExplicit, nil
	}
	if tok := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); tok != "" {
		return tok, TokenSourceEnv, nil
	}

	tok, err := ghCLIToken(ctx)
	if err != nil || tok == "" {
		return "", "", err
	}
	return tok, TokenSourceGHCLI, nil
}

func ghCLIToken(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return "", nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ghLookupTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "gh", "auth", "token", "-h", "github.com")
	env := make([]string, 0, len(os.Environ())+1)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "GH_PAGER=") {
			env = append(env, kv)
		}
	}
	cmd.Env = append(env, "GH_PAGER=cat")

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// Not logged in or broken gh config: behave as if no token exists.
		return "", nil
	}

	tok := strings.TrimSpace(string(out))
	if strings.ContainsAny(tok, " \t\r\n") {
		return "", errors.New("invalid token returned by gh: contains whitespace")
	}
	return tok, nil
}
