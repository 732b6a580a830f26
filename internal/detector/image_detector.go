package detector

import (
	"context"
	"time"
)

// ImageDetector reports whether a process with the given name runs from Path.
type ImageDetector struct {
	Name    string
	Path    string
	Timeout time.Duration // per probe; 0 means 10s

	locator *Locator
}

func NewImageDetector(name, path string) ImageDetector {
	return ImageDetector{Name: name, Path: path, locator: NewLocator()}
}

func (d ImageDetector) Alive() (bool, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	loc := d.locator
	if loc == nil {
		loc = NewLocator()
	}
	m, err := loc.Find(ctx, d.Name, d.Path)
	if err != nil {
		return false, err
	}
	return m != nil && !m.Exited, nil
}

func (d ImageDetector) Describe() string { return "image:" + d.Name + "@" + d.Path }
