package main

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"os"
	"path/filepath"
	"strings"
)

const IdentityFilename = "identity"

// loadIdentity returns the persisted identity in dir, generating and saving a new one if none
// exists. Erasing the file is how a radio forgets its pairing.
func loadIdentity(dir string) (string, error) {
	file := filepath.Join(dir, IdentityFilename)

	data, err := os.ReadFile(file)
	if err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return id.String(), nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read identity: %w", err)
	}

	id := uuid.New().String()

	if err := os.MkdirAll(dir, DefaultDirectoryPermissions); err != nil {
		return "", fmt.Errorf("failed to create identity directory: %w", err)
	}

	if err := safeWriteFile(file, []byte(id), 0600); err != nil {
		return "", fmt.Errorf("failed to save identity: %w", err)
	}

	return id, nil
}
