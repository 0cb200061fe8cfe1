package preference

import (
	"context"
	"errors"
	"fmt"

	"popcorn-grinder-service/internal/repository"
)

// ThemeKey is the storage key of the theme preference
const ThemeKey = "theme"

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// ErrInvalidTheme is returned for anything other than dark or light
var ErrInvalidTheme = errors.New("theme must be \"dark\" or \"light\"")

// ThemeStore persists the dark/light preference
type ThemeStore struct {
	storage  repository.Storage
	fallback string
}

// NewThemeStore creates a ThemeStore. fallback is used while nothing valid
// is stored; anything but dark means light.
func NewThemeStore(storage repository.Storage, fallback string) *ThemeStore {
	if fallback != ThemeDark {
		fallback = ThemeLight
	}
	return &ThemeStore{storage: storage, fallback: fallback}
}

// Get returns the stored theme, or the fallback when absent or unrecognised
func (t *ThemeStore) Get(ctx context.Context) (string, error) {
	value, err := t.storage.Get(ctx, ThemeKey)
	if err != nil {
		if repository.IsNotFound(err) {
			return t.fallback, nil
		}
		return "", fmt.Errorf("failed to read theme: %w", err)
	}
	if !IsValidTheme(value) {
		return t.fallback, nil
	}
	return value, nil
}

// Set persists a theme
func (t *ThemeStore) Set(ctx context.Context, theme string) error {
	if !IsValidTheme(theme) {
		return ErrInvalidTheme
	}
	if err := t.storage.Set(ctx, ThemeKey, theme); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}
	return nil
}

// Toggle flips between dark and light and returns the new theme
func (t *ThemeStore) Toggle(ctx context.Context) (string, error) {
	current, err := t.Get(ctx)
	if err != nil {
		return "", err
	}
	next := ThemeDark
	if current == ThemeDark {
		next = ThemeLight
	}
	if err := t.Set(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}

// IsValidTheme reports whether theme is dark or light
func IsValidTheme(theme string) bool {
	return theme == ThemeDark || theme == ThemeLight
}
