package util

import (
	"gopkg.in/ini.v1"
)

// Ini returns the keys and values of the default section of an ini file, which has no section header.
func Ini(filename string) (map[string]string, error) {
	cfg, err := ini.Load(filename)
	if err != nil {
		return nil, err
	}
	return cfg.Section(ini.DefaultSection).KeysHash(), nil
}
