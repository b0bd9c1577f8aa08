package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/opsdesk/casetrack/internal/models"
)

// Session is the locally persisted identity, rehydrated on CLI startup so
// users stay logged in between invocations.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func sessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "casetrack", "session.json"), nil
}

// LoadSession returns (nil, nil) when no session is stored.
func LoadSession() (*Session, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		// A corrupt session file is treated as logged out.
		_ = os.Remove(path)
		return nil, nil
	}
	return &session, nil
}

func SaveSession(session *Session) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func ClearSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
