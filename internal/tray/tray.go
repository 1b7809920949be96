// Package tray provides system tray integration using fyne.io/systray.
//
// Adapted from uplg-asahi-map's internal/tray/tray.go: spec §1 excludes
// "the GUI", but the system tray is ambient process control rather than a
// GUI surface, so it stays. Generalized from a single fixed "layout" list
// built once at startup into a "preset" submenu that can grow at runtime
// (spec §4.7's AvailablePresets is meant to be re-scanned, not read once),
// keyed by name in a map rather than a slice paired index-for-index with a
// name slice, with its own refresh action and lock since the menu is now
// mutated from two places: the click-polling loop and a rescan.
package tray

import (
	"log/slog"
	"sync"
	"time"

	"fyne.io/systray"
)

// Tray represents the system tray icon and menu.
type Tray struct {
	logger *slog.Logger

	// Callbacks
	onPresetChange func(preset string)
	onToggle       func(enabled bool)
	onQuit         func()

	// scanPresets re-lists the presets directory; nil disables the refresh
	// item entirely (e.g. when presets are supplied in-memory only).
	scanPresets func() ([]string, error)

	// State
	enabled        bool
	currentPreset  string
	initialPresets []string

	// Menu items for updates
	statusItem  *systray.MenuItem
	presetMenu  *systray.MenuItem
	refreshItem *systray.MenuItem
	quitItem    *systray.MenuItem

	mu          sync.Mutex
	presetOrder []string
	presetItems map[string]*systray.MenuItem
}

// Config holds tray configuration.
type Config struct {
	CurrentPreset    string
	AvailablePresets []string
	// ScanPresets, if set, is called on every "Refresh list" click to
	// discover presets added since the tray started. Presets removed from
	// disk stay in the menu.
	ScanPresets    func() ([]string, error)
	Enabled        bool
	OnPresetChange func(preset string)
	OnToggle       func(enabled bool)
	OnQuit         func()
	Logger         *slog.Logger
}

// New creates a new system tray icon.
func New(cfg Config) *Tray {
	return &Tray{
		enabled:        cfg.Enabled,
		currentPreset:  cfg.CurrentPreset,
		initialPresets: cfg.AvailablePresets,
		scanPresets:    cfg.ScanPresets,
		onPresetChange: cfg.OnPresetChange,
		onToggle:       cfg.OnToggle,
		onQuit:         cfg.OnQuit,
		logger:         cfg.Logger,
		presetItems:    make(map[string]*systray.MenuItem),
	}
}

// Run starts the system tray. This blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when systray is ready.
func (t *Tray) onReady() {
	systray.SetIcon(keyboardIcon)
	systray.SetTitle("remapd")
	t.updateTooltip()

	// Status toggle
	t.statusItem = systray.AddMenuItem("✓ Enabled", "Toggle remapping")

	systray.AddSeparator()

	// Preset submenu, seeded from whatever was already on disk at startup.
	t.presetMenu = systray.AddMenuItem("Preset", "Select active mapping preset")
	for _, preset := range t.initialPresets {
		t.addPresetItem(preset)
	}
	if t.scanPresets != nil {
		t.refreshItem = t.presetMenu.AddSubMenuItem("↻ Refresh list", "Rescan the presets directory for new presets")
	}

	systray.AddSeparator()

	// Quit
	t.quitItem = systray.AddMenuItem("Quit", "Exit remapd")

	go t.handleClicks()
}

// addPresetItem adds one preset's submenu entry if it isn't already present.
// Safe to call after onReady, from refreshPresets as well as the initial
// seeding pass: systray has no "remove item" primitive on every platform, so
// the preset set only ever grows for the life of the tray.
func (t *Tray) addPresetItem(preset string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.presetItems[preset]; exists {
		return
	}
	label := "  " + preset
	if preset == t.currentPreset {
		label = "● " + preset
	}
	item := t.presetMenu.AddSubMenuItem(label, "Switch to "+preset)
	t.presetItems[preset] = item
	t.presetOrder = append(t.presetOrder, preset)
}

// refreshPresets re-scans the presets directory and adds any preset not
// already in the menu. Presets removed from disk stay in the menu until the
// tray restarts.
func (t *Tray) refreshPresets() {
	if t.scanPresets == nil {
		return
	}
	names, err := t.scanPresets()
	if err != nil {
		if t.logger != nil {
			t.logger.Error("tray: failed to scan presets", "error", err)
		}
		return
	}
	added := 0
	for _, name := range names {
		t.mu.Lock()
		_, exists := t.presetItems[name]
		t.mu.Unlock()
		if exists {
			continue
		}
		t.addPresetItem(name)
		added++
	}
	if added > 0 && t.logger != nil {
		t.logger.Info("tray: discovered new presets", "count", added)
	}
}

// presetSnapshot returns the current preset names in display order and their
// menu items, without holding the lock while the caller selects on them.
func (t *Tray) presetSnapshot() ([]string, map[string]*systray.MenuItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	order := append([]string(nil), t.presetOrder...)
	items := make(map[string]*systray.MenuItem, len(t.presetItems))
	for k, v := range t.presetItems {
		items[k] = v
	}
	return order, items
}

// handleClicks processes menu item clicks.
func (t *Tray) handleClicks() {
	for {
		select {
		case <-t.statusItem.ClickedCh:
			t.toggleEnabled()

		case <-t.quitItem.ClickedCh:
			if t.onQuit != nil {
				t.onQuit()
			}
			systray.Quit()
			return

		default:
			if t.refreshItem != nil {
				select {
				case <-t.refreshItem.ClickedCh:
					t.refreshPresets()
				default:
				}
			}
			order, items := t.presetSnapshot()
			for _, name := range order {
				select {
				case <-items[name].ClickedCh:
					t.selectPreset(name)
				default:
				}
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// toggleEnabled toggles the enabled state.
func (t *Tray) toggleEnabled() {
	t.enabled = !t.enabled

	if t.enabled {
		t.statusItem.SetTitle("✓ Enabled")
		systray.SetIcon(keyboardIcon)
	} else {
		t.statusItem.SetTitle("✗ Disabled")
		systray.SetIcon(keyboardDisabledIcon)
	}

	t.updateTooltip()

	if t.onToggle != nil {
		t.onToggle(t.enabled)
	}
}

// selectPreset changes the current preset and relabels every known preset
// item to reflect which one is now active.
func (t *Tray) selectPreset(preset string) {
	if preset == t.currentPreset {
		return
	}

	t.mu.Lock()
	for name, item := range t.presetItems {
		if name == preset {
			item.SetTitle("● " + name)
		} else {
			item.SetTitle("  " + name)
		}
	}
	t.mu.Unlock()

	t.currentPreset = preset
	t.updateTooltip()
	if t.logger != nil {
		t.logger.Info("preset changed", "preset", preset)
	}

	if t.onPresetChange != nil {
		t.onPresetChange(preset)
	}
}

// updateTooltip updates the tray tooltip.
func (t *Tray) updateTooltip() {
	status := "Enabled"
	if !t.enabled {
		status = "Disabled"
	}
	systray.SetTooltip("remapd: " + status + " (" + t.currentPreset + ")")
}

// onExit is called when systray is exiting.
func (t *Tray) onExit() {
	if t.logger != nil {
		t.logger.Info("tray exiting")
	}
}

// Quit stops the system tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// SetEnabled sets the enabled state.
func (t *Tray) SetEnabled(enabled bool) {
	t.enabled = enabled
	if t.statusItem != nil {
		if enabled {
			t.statusItem.SetTitle("✓ Enabled")
		} else {
			t.statusItem.SetTitle("✗ Disabled")
		}
	}
	t.updateTooltip()
}
