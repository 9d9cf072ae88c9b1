package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const pepperSize = 32

var (
	pepperMu   sync.Mutex
	pepper     string
	pepperFile string
)

// SetPepperPath configures the file holding the password pepper and drops
// any pepper already loaded. Hashes only verify under the pepper they were
// written with, so the file must survive restarts.
func SetPepperPath(file string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	pepperFile = file
	pepper = ""
}

// currentPepper loads the pepper on first use. The file is created with a
// random pepper when it does not exist yet. With no file configured the
// pepper lives only for this process.
func currentPepper() (string, error) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper != "" {
		return pepper, nil
	}

	if pepperFile == "" {
		slog.Warn("no pepper file configured, using a process-local pepper")
		p, err := randomPepper()
		if err != nil {
			return "", err
		}
		pepper = p
		return pepper, nil
	}

	path := filepath.Clean(pepperFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) == 0 {
			return "", fmt.Errorf("cryptox: pepper file %s is empty", path)
		}
		pepper = string(data)
		return pepper, nil

	case os.IsNotExist(err):
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return "", fmt.Errorf("cryptox: create pepper dir: %w", err)
		}
		p, err := randomPepper()
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte(p), 0o600); err != nil {
			return "", fmt.Errorf("cryptox: write pepper: %w", err)
		}
		pepper = p
		return pepper, nil

	default:
		return "", fmt.Errorf("cryptox: read pepper: %w", err)
	}
}

func randomPepper() (string, error) {
	b := make([]byte, pepperSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
