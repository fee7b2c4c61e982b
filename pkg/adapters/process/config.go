package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Device names understood in devices.yaml.
const (
	DeviceMicrophone = "microphone"
	DevicePlayer     = "player"
	DeviceVoice      = "voice"
)

// DeviceConfig describes the external command behind an audio device.
type DeviceConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	MimeType    string            `yaml:"mime_type" json:"mime_type"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of devices.yaml.
type ConfigFile struct {
	Devices []DeviceConfig `yaml:"devices" json:"devices"`
}

// DefaultDevices records 16 kHz mono WAV with ALSA, plays through ffplay and
// speaks with espeak-ng.
func DefaultDevices() map[string]DeviceConfig {
	return map[string]DeviceConfig{
		DeviceMicrophone: {
			Name:     DeviceMicrophone,
			Command:  "arecord",
			Args:     []string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "wav", "-"},
			MimeType: "audio/wav",
		},
		DevicePlayer: {
			Name:    DevicePlayer,
			Command: "ffplay",
			Args:    []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-i", "-"},
		},
		DeviceVoice: {
			Name:    DeviceVoice,
			Command: "espeak-ng",
		},
	}
}

// LoadDevices reads a configuration file (YAML or JSON) and overlays it on
// DefaultDevices. A missing file yields the defaults.
func LoadDevices(path string) (map[string]DeviceConfig, error) {
	devices := DefaultDevices()
	if path == "" {
		return devices, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return devices, nil
		}
		return nil, fmt.Errorf("failed to read devices config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse devices.json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse devices.yaml: %w", err)
		}
	}

	for _, dev := range cfg.Devices {
		if dev.Name == "" || dev.Command == "" {
			continue
		}
		devices[dev.Name] = dev
	}
	return devices, nil
}

// environ returns the process environment with the device overrides appended.
func (d DeviceConfig) environ(base []string) []string {
	env := base
	for k, v := range d.Environment {
		env = append(env, k+"="+v)
	}
	return env
}
