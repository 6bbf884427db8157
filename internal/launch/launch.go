// Package launch hands a repository off to external programs: git for
// cloning and the desktop browser for viewing.
package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// command is swapped out in tests.
var command = exec.CommandContext

var errGitMissing = errors.New("git executable not found in PATH")

// CloneURL resolves a clone target. "owner/name" is taken to be a GitHub
// repository; anything else must be an http(s) URL.
func CloneURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errors.New("empty repository")
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		if err := checkURL(target); err != nil {
			return "", err
		}
		return target, nil
	}
	owner, name, err := SplitRepo(target)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", owner, name), nil
}

// WebURL resolves a target to the repository's page. Like CloneURL,
// "owner/name" means GitHub.
func WebURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		if err := checkURL(target); err != nil {
			return "", err
		}
		return target, nil
	}
	owner, name, err := SplitRepo(target)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://github.com/%s/%s", owner, name), nil
}

// SplitRepo parses "owner/name".
func SplitRepo(s string) (owner, name string, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", s)
	}
	for _, p := range parts {
		if strings.HasPrefix(p, "-") || strings.ContainsAny(p, " \t\n:\\") {
			return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", s)
		}
	}
	return parts[0], parts[1], nil
}

// Clone runs git clone for target into the current directory, streaming
// git's progress to stderr.
func Clone(ctx context.Context, target string, stdout, stderr io.Writer) error {
	cloneURL, err := CloneURL(target)
	if err != nil {
		return err
	}
	cmd := command(ctx, "git", "clone", "--", cloneURL)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return errGitMissing
		}
		return fmt.Errorf("git clone %s: %w", cloneURL, err)
	}
	return nil
}

// Open launches the system browser on rawURL and returns without waiting
// for it.
func Open(rawURL string) error {
	if err := checkURL(rawURL); err != nil {
		return err
	}
	name, args := opener(runtime.GOOS)
	return command(context.Background(), name, append(args, rawURL)...).Start()
}

func opener(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		// rundll32 avoids cmd /c start and its shell parsing
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}

func checkURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing URL with scheme %q (only http/https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	return nil
}
