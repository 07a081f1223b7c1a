package hub

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TokenSource finds the hub token: an explicit value first, then the
// token= line of the guardrails rc file.
type TokenSource struct {
	Token  string
	RCPath string
}

func (s TokenSource) Resolve() (string, error) {
	if tok := strings.TrimSpace(s.Token); tok != "" {
		return tok, nil
	}
	path := expandHome(strings.TrimSpace(s.RCPath))
	if path != "" {
		tok, err := readRCToken(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("hub: read %s: %w", path, err)
		}
		if tok != "" {
			return tok, nil
		}
	}
	return "", fmt.Errorf("%w: unable to find a Guardrails Hub token, run 'uvguard configure' first", ErrTokenMissing)
}

func readRCToken(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != "token" {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"'`), nil
	}
	return "", sc.Err()
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
