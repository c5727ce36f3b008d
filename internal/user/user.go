// Package user stores the identity recorded as the actor on runs.
package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/VoxDroid/pyship/internal/config"
)

// Profile holds persisted actor metadata.
type Profile struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// String renders "Name <email>" or just the name.
func (p Profile) String() string {
	if p.Email == "" {
		return p.Name
	}
	return p.Name + " <" + p.Email + ">"
}

func profilePath() (string, error) {
	d, err := config.EnsureDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "whoami.json"), nil
}

// SetProfile validates and saves the profile.
func SetProfile(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	pfile, err := profilePath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(pfile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// GetProfile reads the profile. Returns (Profile, true, nil) if found.
func GetProfile() (Profile, bool, error) {
	pfile, err := profilePath()
	if err != nil {
		return Profile{}, false, err
	}
	b, err := os.ReadFile(pfile)
	if err != nil {
		if os.IsNotExist(err) {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	var p Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return Profile{}, false, err
	}
	return p, true, nil
}

// ClearProfile removes the persisted profile.
func ClearProfile() error {
	pfile, err := profilePath()
	if err != nil {
		return err
	}
	if err := os.Remove(pfile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}

// EnvActor overrides the recorded actor, for shared CI accounts.
const EnvActor = "PYSHIP_ACTOR"

// Origin says where a resolved actor came from.
type Origin string

const (
	OriginEnv     Origin = "env"
	OriginProfile Origin = "profile"
	OriginAccount Origin = "account"
	OriginNone    Origin = "none"
)

// Validate rejects names that would corrupt a log line or header.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if strings.ContainsAny(p.Name+p.Email, "\r\n<>") {
		return errors.New("name and email must not contain newlines or angle brackets")
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return fmt.Errorf("invalid email %q", p.Email)
	}
	return nil
}

// Resolve returns the identity to record on a run and where it came from:
// PYSHIP_ACTOR, then the stored profile, then the OS account.
func Resolve() (string, Origin) {
	if v := strings.TrimSpace(os.Getenv(EnvActor)); v != "" {
		return v, OriginEnv
	}
	if p, ok, err := GetProfile(); err == nil && ok && strings.TrimSpace(p.Name) != "" {
		return p.String(), OriginProfile
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username, OriginAccount
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v, OriginAccount
		}
	}
	return "unknown", OriginNone
}

// Actor is Resolve without the origin.
func Actor() string {
	a, _ := Resolve()
	return a
}
