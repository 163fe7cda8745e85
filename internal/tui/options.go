package tui

import (
	"github.com/atotto/clipboard"
	charmLog "github.com/charmbracelet/log"
)

// KeyConfig carries configurable key overrides. Blank fields keep the defaults.
type KeyConfig struct {
	ToggleRow     string
	RangeToggle   string
	ToggleAll     string
	ConfirmAcross string
	ClearAcross   string
	Actions       string
	Search        string
}

// ConfirmConfig selects which bulk actions open a confirmation modal.
type ConfirmConfig struct {
	Delete  bool
	Archive bool
	Change  bool
}

// RuntimeConfig is the config subset the grid reads at startup.
type RuntimeConfig struct {
	PageSize                 int
	SuppressSinglePagePrompt bool
	ShowArchived             bool
	Confirm                  ConfirmConfig
	Keys                     KeyConfig
}

// ClipboardWriter writes text to the system clipboard.
type ClipboardWriter func(string) error

// Option configures a Model at construction.
type Option func(*Model)

// DefaultRuntimeConfig returns the grid defaults used when no config file is present.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		PageSize: 50,
		Confirm: ConfirmConfig{
			Delete: true,
		},
	}
}

// WithRuntimeConfig applies the grid settings read from the config file.
func WithRuntimeConfig(cfg RuntimeConfig) Option {
	return func(m *Model) {
		m.applyRuntimeConfig(cfg)
	}
}

// WithClipboard replaces the system clipboard writer. A nil writer is ignored.
func WithClipboard(write ClipboardWriter) Option {
	return func(m *Model) {
		if write != nil {
			m.writeClipboard = write
		}
	}
}

// WithLogger sets the logger that receives selection and action events.
func WithLogger(logger *charmLog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

func systemClipboard(text string) error {
	return clipboard.WriteAll(text)
}
