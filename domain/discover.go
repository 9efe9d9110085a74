package domain

import (
	"os"
	"path/filepath"
	"strings"
)

const subscriptionsSuffix = "com.endlessm.subscriptions"

// dataHome returns the XDG_DATA_HOME directory, falling back to its POSIX
// default (~/.local/share).
func dataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share")
}

// dataDirs returns the XDG_DATA_DIRS search path, falling back to its
// POSIX default.
func dataDirs() []string {
	v := os.Getenv("XDG_DATA_DIRS")
	if v == "" {
		v = "/usr/local/share:/usr/share"
	}
	var out []string
	for _, p := range strings.Split(v, ":") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// discoverSubscriptionDirs finds every subscription directory for appID:
// the primary subscriptions directory under the user data home, plus one
// per extension directory under every system data directory.
func discoverSubscriptionDirs(appID string) []string {
	var dirs []string

	primary := filepath.Join(dataHome(), appID, subscriptionsSuffix)
	dirs = append(dirs, listSubdirsWithManifest(primary)...)

	for _, base := range dataDirs() {
		extensionsRoot := filepath.Join(base, appID, "extensions")
		dirs = append(dirs, listSubdirsWithManifest(extensionsRoot)...)
	}

	return dirs
}

// listSubdirsWithManifest returns every immediate subdirectory of root that
// contains a manifest.json, in directory-listing order.
func listSubdirsWithManifest(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(candidate, "manifest.json")); err == nil {
			out = append(out, candidate)
		}
	}
	return out
}
