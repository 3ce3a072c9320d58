package confloader

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

// mapProvider serves overrides. Dotted keys are expanded into nested
// maps so they merge like file sections.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("confloader: map provider has no byte form")
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
