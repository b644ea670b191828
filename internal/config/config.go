// Package config loads the operator-facing YAML file and watches it for
// live edits, following the teacher's HotReloadSystem
// (engine/internal/runtime/runtime.go) — an fsnotify watcher goroutine that
// reloads and validates on every write event, applying changes to the
// running client without a restart.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// File is the on-disk config shape.
type File struct {
	DTU struct {
		Server             string `yaml:"server"`
		Port               uint16 `yaml:"port"`
		PowerLimit         int    `yaml:"powerLimit"`
		PreventCloudErrors bool   `yaml:"preventCloudErrors"`
	} `yaml:"dtu"`
	Publish struct {
		Mode         string `yaml:"mode"` // "log" or "homeassistant"
		HomeAssistant struct {
			Prefix string `yaml:"prefix"`
			NodeID string `yaml:"nodeId"`
		} `yaml:"homeassistant"`
	} `yaml:"publish"`
}

// Validate rejects configs that would leave the client unable to connect.
func (f File) Validate() error {
	if f.DTU.Server == "" {
		return fmt.Errorf("config: dtu.server must not be empty")
	}
	if f.DTU.Port == 0 {
		return fmt.Errorf("config: dtu.port must not be zero")
	}
	return nil
}

// Load reads and parses path, returning a validated File.
func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Change is delivered on every successful reload triggered by a watched
// write event.
type Change struct {
	File File
}

// Watch starts an fsnotify watcher on path's containing directory (editors
// commonly replace the file rather than write in place, which fsnotify sees
// as a rename+create on the directory) and reloads path whenever a Write or
// Create event names it. Invalid reloads are logged through onError and the
// last good File is left untouched — the watcher goroutine never exits on a
// bad edit.
func Watch(ctx context.Context, path string, onChange func(Change), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: start watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				f, err := Load(path)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				if onChange != nil {
					onChange(Change{File: f})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(fmt.Errorf("config: watch error: %w", err))
				}
			}
		}
	}()
	return nil
}
