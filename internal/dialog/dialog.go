// Package dialog answers OS security prompts that block an unattended launch.
package dialog

import (
	"log/slog"
	"strings"
)

// DefaultTitles are the localized captions of the shell security prompts, in
// lookup order.
var DefaultTitles = []string{
	"Безопасность Windows",
	"Windows Security",
	"Open File - Security Warning",
	"Подтверждение безопасности",
	"Безопасный запуск",
	"Открыть файл - предупреждение системы безопасности",
}

// DefaultLabels are affirmative button captions matched as case-insensitive substrings.
var DefaultLabels = []string{
	"Запустить",
	"Run anyway",
	"Разрешить",
	"Allow",
	"Yes",
}

// control is a child window of a dialog together with its caption.
type control struct {
	hwnd uintptr
	text string
}

// windowAPI is the platform window-manager boundary.
type windowAPI interface {
	findTopLevel(title string) (uintptr, bool)
	children(parent uintptr) []control
	click(hwnd uintptr) error
}

// Dismisser clicks the affirmative button of a known security dialog.
type Dismisser struct {
	titles []string
	labels []string
	api    windowAPI
	log    *slog.Logger
}

// New returns a Dismisser for the given title and label lists. Empty lists
// fall back to DefaultTitles and DefaultLabels.
func New(titles, labels []string, log *slog.Logger) *Dismisser {
	if len(titles) == 0 {
		titles = DefaultTitles
	}
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	if log == nil {
		log = slog.Default()
	}
	lower := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			lower = append(lower, strings.ToLower(l))
		}
	}
	return &Dismisser{
		titles: append([]string(nil), titles...),
		labels: lower,
		api:    nativeAPI(),
		log:    log,
	}
}

// TryDismiss performs a single scan. It returns true after clicking the first
// matching button and never retries; lookup failures count as no match.
func (d *Dismisser) TryDismiss() (clicked bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Debug("Dialog probe failed", "panic", r)
			clicked = false
		}
	}()
	for _, title := range d.titles {
		hwnd, ok := d.api.findTopLevel(title)
		if !ok {
			continue
		}
		btn, label, ok := d.findButton(hwnd)
		if !ok {
			continue
		}
		if err := d.api.click(btn); err != nil {
			d.log.Debug("Dialog button click failed", "title", title, "button", label, "error", err)
			continue
		}
		d.log.Info("Clicked security dialog button", "title", title, "button", label)
		return true
	}
	return false
}

func (d *Dismisser) findButton(parent uintptr) (uintptr, string, bool) {
	for _, c := range d.api.children(parent) {
		if c.text == "" {
			continue
		}
		text := strings.ToLower(c.text)
		for _, l := range d.labels {
			if strings.Contains(text, l) {
				return c.hwnd, c.text, true
			}
		}
	}
	return 0, "", false
}
