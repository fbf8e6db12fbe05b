package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Store holds the current configuration. It is owned by the event loop and is
// not safe for concurrent use; other goroutines only ever see Snapshot copies.
type Store struct {
	cfg  Config
	opts LoadOptions
}

func NewStore(cfg *Config, opts LoadOptions) *Store {
	s := &Store{opts: opts}
	if cfg != nil {
		s.cfg = *cfg
	}
	return s
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Config { return s.cfg }

// Reload re-reads the environment and the .env file.
func (s *Store) Reload() (Config, error) {
	cfg, err := LoadWithOptions(s.opts)
	if err != nil {
		return s.cfg, err
	}
	s.cfg = *cfg
	return s.cfg, nil
}

// SetPremium flips the premium toggle and persists it to the .env file.
// The in-memory value changes even when persisting fails.
func (s *Store) SetPremium(on bool) error {
	s.cfg.UsePremium = on
	path := s.cfg.EnvPath
	if path == "" {
		path = DefaultEnvPath()
		if path == "" {
			return errors.New("no location to persist configuration")
		}
		s.cfg.EnvPath = path
		s.opts.EnvPathOverride = path
	}
	return SavePremium(path, on)
}

// SavePremium writes USE_PREMIUM into the .env at path, keeping the other keys.
func SavePremium(path string, on bool) error {
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		values = map[string]string{}
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	values[premiumKey] = strconv.FormatBool(on)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Printf("Config: saved %s=%t to %s", premiumKey, on, path)
	return nil
}
