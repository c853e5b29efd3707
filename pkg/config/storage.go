package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/herlein/godvb/pkg/frontend"
)

func save(v any, path string) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveToFile writes a board description
func SaveToFile(board *BoardConfig, path string) error {
	return save(board, path)
}

// LoadFromFile reads and validates a board description. Missing fields take
// the defaults of DefaultBoard.
func LoadFromFile(path string) (*BoardConfig, error) {
	board := DefaultBoard()
	if err := load(path, board); err != nil {
		return nil, err
	}
	if err := board.Validate(); err != nil {
		return nil, err
	}
	return board, nil
}

// SaveCalibration writes a calibration dump
func SaveCalibration(c *Calibration, path string) error {
	return save(c, path)
}

// LoadCalibration reads a calibration dump
func LoadCalibration(path string) (*Calibration, error) {
	var c Calibration
	if err := load(path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ScanList is a list of transponders to try
type ScanList struct {
	Transponders []frontend.Properties `yaml:"transponders"`
}

// LoadScanList reads and validates a transponder list. Entries without a
// stream_id get NoStreamID.
func LoadScanList(path string) (*ScanList, error) {
	var raw struct {
		Transponders []yaml.Node `yaml:"transponders"`
	}
	if err := load(path, &raw); err != nil {
		return nil, err
	}
	list := &ScanList{Transponders: make([]frontend.Properties, 0, len(raw.Transponders))}
	for i, node := range raw.Transponders {
		p := frontend.Properties{StreamID: frontend.NoStreamID}
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("transponder %d: %w", i, err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("transponder %d: %w", i, err)
		}
		list.Transponders = append(list.Transponders, p)
	}
	return list, nil
}

// GetCalibrationPath returns where the calibration of a board is kept
func GetCalibrationPath(board string) string {
	return filepath.Join("etc", "godvb", fmt.Sprintf("%s-cal.yaml", board))
}
