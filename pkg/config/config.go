package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".gamesniff"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// SteamDir overrides the Steam install dir discovery. A leading ~ is
	// expanded.
	SteamDir string `yaml:"steam-dir,omitempty"`

	// LibraryDirs are steamapps directories searched in addition to the
	// one inside the Steam install dir.
	LibraryDirs []string `yaml:"library-dirs"`

	// DetectCacheSize is the number of executable descriptors remembered
	// during a library scan.
	DetectCacheSize *int `yaml:"detect-cache-size,omitempty"`

	// Output is the default output format: text, yaml or json.
	Output string `yaml:"output,omitempty"`

	// IncludeTools keeps catalog entries of type Tool.
	IncludeTools bool `yaml:"include-tools"`
}

// LoadConfig attempts to populate a Config object from the config.yml
// file. An empty path selects the default location, which is created
// with a commented default configuration when missing. Failures are
// reported on stderr and yield an empty Config.
func LoadConfig(path string) *Config {
	if path == "" {
		if err := createConfigPath(); err != nil {
			fmt.Fprintf(os.Stderr, "Could not create config directory: %v.\n", err)
			return &Config{}
		}
		var err error
		path, err = GetConfigFilePath(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to get config file path: %v.\n", err)
			return &Config{}
		}
	}

	f, err := os.Open(path)
	if err != nil {
		f, err = createDefaultConfig(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating default config file: %v\n", err)
			return &Config{}
		}
	}
	defer f.Close()

	c, err := decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to decode config file: %v.\n", err)
		return &Config{}
	}
	return c
}

func decode(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConfig will marshal and save the config struct to path, or to the
// default location when path is empty.
func SaveConfig(conf *Config, path string) error {
	if path == "" {
		var err error
		if path, err = GetConfigFilePath(configFile); err != nil {
			return err
		}
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	if err := writeDefaultConfig(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for gamesniff.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Steam install dir. When unset it is read from the registry on Windows or
# looked up in the usual per-user locations.
# steam-dir: ~/.steam/steam

# Additional steamapps directories, for libraries on other drives.
library-dirs:
  # - /mnt/games/SteamLibrary/steamapps

# Number of executable descriptors remembered during a scan.
# detect-cache-size: 256

# Default output format: text, yaml or json.
# output: text

# Uncomment the following line to list catalog entries of type Tool.
# include-tools: true
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0o700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir, file), nil
}
