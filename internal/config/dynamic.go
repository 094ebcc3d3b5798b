package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Dynamic is the hot reloadable part of the console configuration, read
// from CONSOLE_DYNAMIC_PATH. Zero values leave the current setting alone.
type Dynamic struct {
	DelayMinutes *int           `yaml:"delayMinutes"`
	Scheduler    DynamicControl `yaml:"scheduler"`
}

type DynamicControl struct {
	MinDelayMs   int    `yaml:"minDelayMs"`
	AbortCmd     string `yaml:"abortCmd"`
	FinishCmd    string `yaml:"finishCmd"`
	FinishNowCmd string `yaml:"finishNowCmd"`
}

func LoadDynamic(path string) (*Dynamic, error) {
	data, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, err
	}
	d := &Dynamic{}
	if err := yaml.UnmarshalStrict(data, d); err != nil {
		return nil, err
	}
	return d, nil
}
