// Package launchfile loads named launch configurations from a TOML file.
//
// The launch argument maps are passed to the adapter verbatim; this package
// never interprets their contents.
package launchfile

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// File is a parsed launch configuration file.
//
// Layout:
//
//	[adapters.py]
//	kind = "python"
//
//	[adapters.vscode-python]
//	kind = "node"
//	path = "/home/me/.vscode/extensions/ms-python/out/debugAdapter/main.js"
//
//	[configurations.hello]
//	adapter = "py"
//	[configurations.hello.launch]
//	request = "launch"
//	program = "hello.py"
type File struct {
	Adapters       map[string]Adapter       `toml:"adapters"`
	Configurations map[string]Configuration `toml:"configurations"`
}

// Adapter names the debug adapter a configuration runs under. Either Kind
// (resolved via the registry) or Path/Args (run directly) must be set.
type Adapter struct {
	Kind string   `toml:"kind"`
	Path string   `toml:"path"`
	Args []string `toml:"args"`
}

// Configuration is one named debug configuration. Launch is the opaque
// argument map sent as the launch request body.
type Configuration struct {
	Adapter string         `toml:"adapter"`
	Launch  map[string]any `toml:"launch"`
}

// Load reads and parses a launch file from disk.
func Load(path string) (*File, error) {
	var f File

	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parse launch file %s: %w", path, err)
	}

	return &f, nil
}

// Parse parses launch file contents.
func Parse(data []byte) (*File, error) {
	var f File

	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse launch file: %w", err)
	}

	return &f, nil
}

// Configuration returns the named configuration and its adapter definition.
func (f *File) Configuration(name string) (Configuration, Adapter, error) {
	cfg, ok := f.Configurations[name]
	if !ok {
		return Configuration{}, Adapter{}, fmt.Errorf("configuration %q not found", name)
	}

	if cfg.Adapter == "" {
		return Configuration{}, Adapter{}, fmt.Errorf("configuration %q names no adapter", name)
	}

	adapter, ok := f.Adapters[cfg.Adapter]
	if !ok {
		return Configuration{}, Adapter{}, fmt.Errorf(
			"configuration %q references unknown adapter %q", name, cfg.Adapter,
		)
	}

	if adapter.Kind == "" && adapter.Path == "" {
		return Configuration{}, Adapter{}, fmt.Errorf(
			"adapter %q declares neither kind nor path", cfg.Adapter,
		)
	}

	return cfg, adapter, nil
}
