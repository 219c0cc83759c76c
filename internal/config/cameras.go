package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camrelay/internal/camera"
)

// CameraEntry is one [cameras.<id>] table in the cameras file.
type CameraEntry struct {
	Name     string `toml:"name,omitempty"`
	URI      string `toml:"uri"`
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"`
	Width    int    `toml:"width,omitempty"`
	Height   int    `toml:"height,omitempty"`
	Quality  int    `toml:"quality,omitempty"`
	Disabled bool   `toml:"disabled,omitempty"`
}

// CamerasFile is the layout of the cameras file:
//
//	version = 1
//
//	[cameras.front]
//	uri = "rtsp://192.168.1.10:554/stream1"
//	username = "admin"
//	password = "secret"
type CamerasFile struct {
	Version int                    `toml:"version"`
	Cameras map[string]CameraEntry `toml:"cameras"`
}

// LoadCameras reads the cameras file and returns the enabled cameras sorted
// by id. A missing file yields no cameras. Every entry must pass
// camera.Config.Validate; errors for all bad entries are joined.
func LoadCameras(path string) ([]camera.Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cameras file: %w", err)
	}

	var file CamerasFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse cameras file %s: %w", path, err)
	}
	if file.Version > 1 {
		return nil, fmt.Errorf("cameras file %s: unsupported version %d", path, file.Version)
	}

	var cams []camera.Config
	var errs []error
	for id, e := range file.Cameras {
		if e.Disabled {
			continue
		}
		cfg := camera.Config{
			ID:       id,
			Name:     e.Name,
			URI:      strings.TrimSpace(e.URI),
			Username: e.Username,
			Password: e.Password,
			Width:    e.Width,
			Height:   e.Height,
			Quality:  e.Quality,
		}
		if err := cfg.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		cams = append(cams, cfg)
	}
	if len(errs) > 0 {
		slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
		return nil, fmt.Errorf("cameras file %s: %w", path, errors.Join(errs...))
	}

	slices.SortFunc(cams, func(a, b camera.Config) int { return strings.Compare(a.ID, b.ID) })
	return cams, nil
}
