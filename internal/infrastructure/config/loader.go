package config

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
)

// Config holds all loaded configurations
type Config struct {
	Server *ServerConfig
	Map    *MapFile
}

// Loader loads configuration from JSON files using fs.FS interface
type Loader struct {
	fsys     fs.FS
	basePath string
}

// NewLoader creates a new config loader from filesystem path
func NewLoader(basePath string) *Loader {
	return &Loader{
		fsys:     os.DirFS(basePath),
		basePath: basePath,
	}
}

// NewFSLoader creates a new config loader from fs.FS
func NewFSLoader(fsys fs.FS, basePath string) *Loader {
	return &Loader{
		fsys:     fsys,
		basePath: basePath,
	}
}

// LoadServer loads server.json over the defaults
func (l *Loader) LoadServer() (*ServerConfig, error) {
	data, err := fs.ReadFile(l.fsys, "server.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read server.json: %w", err)
	}

	cfg := DefaultServerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server.json: %w", err)
	}

	return cfg, nil
}

// LoadMap loads a map JSON file
func (l *Loader) LoadMap(name string) (*MapFile, error) {
	path := "maps/" + name + ".json"
	data, err := fs.ReadFile(l.fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map %s: %w", name, err)
	}

	var m MapFile
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse map %s: %w", name, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate map %s: %w", name, err)
	}

	return &m, nil
}

// LoadAll loads server.json, applies the environment and loads the map it
// names, or mapName when non-empty.
func (l *Loader) LoadAll(mapName string) (*Config, error) {
	server, err := l.LoadServer()
	if err != nil {
		return nil, err
	}
	server.ApplyEnv()

	if mapName == "" {
		mapName = server.Map
	}
	m, err := l.LoadMap(mapName)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Map:    m,
	}, nil
}
