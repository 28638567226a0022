package license

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const instanceIDFile = "instance_id"

// GetOrCreateInstanceID reads the deployment's instance ID from dir,
// generating and persisting a UUID v7 on first use.
func GetOrCreateInstanceID(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	idPath := filepath.Join(dir, instanceIDFile)

	// O_EXCL avoids racing another process creating the same file.
	f, err := os.OpenFile(idPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600) //nolint:gosec // path is built from the configured data dir
	if err != nil {
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to create instance ID file: %w", err)
		}
		data, readErr := os.ReadFile(idPath) //nolint:gosec // path is built from the configured data dir
		if readErr != nil {
			return "", fmt.Errorf("failed to read instance ID: %w", readErr)
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
		return writeInstanceID(idPath)
	}

	id, err := uuid.NewV7()
	if err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to generate instance ID: %w", err)
	}
	if _, err := f.WriteString(id.String()); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write instance ID: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close instance ID file: %w", err)
	}
	return id.String(), nil
}

// writeInstanceID overwrites an empty instance ID file with a new ID.
func writeInstanceID(idPath string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate instance ID: %w", err)
	}
	if err := os.WriteFile(idPath, []byte(id.String()), 0600); err != nil {
		return "", fmt.Errorf("failed to write instance ID: %w", err)
	}
	return id.String(), nil
}
