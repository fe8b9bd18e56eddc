// Package store loads the startup credential-and-approval dataset consumed
// by the chat registry. The dataset is read once at process start and never
// written back; runtime bans live only in memory.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Dataset is the on-disk shape of users.json.
type Dataset struct {
	// Credentials maps identity -> secret (plaintext or bcrypt hash).
	Credentials map[string]string `json:"credentials"`
	// Approved lists identities granted the moderator/verified badge.
	Approved []string `json:"approved"`
	// Banned lists identities and network addresses rejected at claim
	// time and on every room action.
	Banned []string `json:"banned"`
}

// Load reads the dataset at path. A missing file yields an empty dataset,
// not an error. Two formats are accepted: the structured form above, and the
// legacy flat object {identity: secret}, which is read as credentials-only.
func Load(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("users file absent, starting with empty registries", slog.String("path", path))
			return &Dataset{Credentials: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("read users file %s: %w", path, err)
	}

	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err == nil && (ds.Credentials != nil || ds.Approved != nil || ds.Banned != nil) {
		if ds.Credentials == nil {
			ds.Credentials = map[string]string{}
		}
		slog.Info("users file loaded",
			slog.String("path", path),
			slog.Int("credentials", len(ds.Credentials)),
			slog.Int("approved", len(ds.Approved)),
			slog.Int("banned", len(ds.Banned)))
		return &ds, nil
	}

	// Legacy flat format: {identity: secret}.
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("parse users file %s: %w", path, err)
	}
	slog.Info("users file loaded (legacy format)",
		slog.String("path", path),
		slog.Int("credentials", len(flat)))
	return &Dataset{Credentials: flat}, nil
}
