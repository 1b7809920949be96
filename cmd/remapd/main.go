// remapd: a Linux input-device remapping daemon. Watches physical
// keyboards for user-defined key combinations and either remaps them
// directly onto a virtual device or runs a macro program in response.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/uplg/remapd/internal/config"
	remapctx "github.com/uplg/remapd/internal/context"
	"github.com/uplg/remapd/internal/device"
	"github.com/uplg/remapd/internal/eventmodel"
	"github.com/uplg/remapd/internal/forwarder"
	"github.com/uplg/remapd/internal/layout"
	"github.com/uplg/remapd/internal/router"
	"github.com/uplg/remapd/internal/tray"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	presetPath := flag.String("preset", "", "Path to preset file to load")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version information")
	noTray := flag.Bool("no-tray", false, "Run without system tray")
	flag.Parse()

	if *showVersion {
		fmt.Printf("remapd %s (%s) built %s\n", version, commit, buildDate)
		os.Exit(0)
	}

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *presetPath != "" {
		cfg.PresetPath = *presetPath
	}

	logger.Info("remapd starting", "version", version, "preset", cfg.PresetPath)

	if err := os.MkdirAll(cfg.ConfigDir, 0755); err != nil {
		logger.Error("failed to create config directory", "error", err)
		os.Exit(1)
	}

	presetFullPath := cfg.PresetPath
	if !filepath.IsAbs(presetFullPath) {
		presetFullPath = filepath.Join(cfg.ConfigDir, "presets", presetFullPath)
	}
	preset, err := config.LoadPreset(presetFullPath)
	if err != nil {
		logger.Error("failed to load preset", "path", presetFullPath, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded preset", "name", preset.Name, "mappings", len(preset.Mappings))

	vkb, err := forwarder.NewUinputKeyboard("remapd-keyboard")
	if err != nil {
		logger.Error("failed to create virtual keyboard", "error", err)
		logger.Error("make sure you have write access to /dev/uinput")
		os.Exit(1)
	}
	defer vkb.Close()

	vmouse, err := forwarder.NewUinputMouse("remapd-mouse")
	if err != nil {
		logger.Warn("failed to create virtual mouse, mouse()/wheel() macro tasks will fail", "error", err)
	} else {
		defer vmouse.Close()
	}

	fwdRegistry := forwarder.NewRegistry()
	fwdRegistry.Register("keyboard", vkb)
	if vmouse != nil {
		fwdRegistry.Register("mouse", vmouse)
	}

	remapCtx := remapctx.New(fwdRegistry)
	layoutTable := layout.New()

	devManager := device.NewManager(logger)
	defer devManager.Close()

	groups, err := devManager.Discover("remapd")
	if err != nil {
		logger.Error("failed to discover devices", "error", err)
		os.Exit(1)
	}
	if len(groups) == 0 {
		logger.Error("no input devices found")
		os.Exit(1)
	}

	var devices []*device.Device
	for _, g := range groups {
		for _, d := range g.Devices {
			if err := d.Grab(); err != nil {
				logger.Error("failed to grab device", "name", d.Name(), "error", err)
				continue
			}
			fwdRegistry.Register(d.Hash(), vkb)
			remapCtx.RegisterSourceDevice(d)
			devices = append(devices, d)
		}
	}
	if len(devices) == 0 {
		logger.Error("no devices could be grabbed")
		os.Exit(1)
	}

	r := router.New(vkb)
	if err := r.LoadPreset(preset, remapCtx, layoutTable, logger); err != nil {
		logger.Error("failed to build mapping chains from preset", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, d := range devices {
		go func(dev *device.Device) {
			err := dev.ReadLoop(ctx, func(ev eventmodel.InputEvent) {
				if dispatchErr := r.Dispatch(ev); dispatchErr != nil {
					logger.Error("error dispatching event", "device", dev.Name(), "error", dispatchErr)
				}
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("error reading events", "device", dev.Name(), "error", err)
			}
		}(d)
	}

	availablePresets, err := config.AvailablePresets(filepath.Join(cfg.ConfigDir, "presets"))
	if err != nil {
		logger.Warn("could not list presets", "error", err)
		availablePresets = []string{preset.Name}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *noTray {
		logger.Info("running without system tray, press Ctrl+C to quit")
		<-sigChan
		logger.Info("shutting down...")
	} else {
		trayCfg := tray.Config{
			CurrentPreset:    preset.Name,
			AvailablePresets: availablePresets,
			ScanPresets: func() ([]string, error) {
				return config.AvailablePresets(filepath.Join(cfg.ConfigDir, "presets"))
			},
			Enabled: true,
			OnPresetChange: func(name string) {
				newPreset, err := config.LoadPreset(filepath.Join(cfg.ConfigDir, "presets", name+".yaml"))
				if err != nil {
					logger.Error("failed to load preset", "preset", name, "error", err)
					return
				}
				if err := r.LoadPreset(newPreset, remapCtx, layoutTable, logger); err != nil {
					logger.Error("failed to rebuild mapping chains", "preset", name, "error", err)
					return
				}
				cfg.PresetPath = name + ".yaml"
				cfg.Save()
			},
			OnToggle: func(enabled bool) {
				r.SetEnabled(enabled)
			},
			OnQuit: func() {
				logger.Info("shutting down...")
				cancel()
				os.Exit(0)
			},
			Logger: logger,
		}

		trayIcon := tray.New(trayCfg)

		go func() {
			<-sigChan
			logger.Info("shutting down...")
			trayIcon.Quit()
		}()

		trayIcon.Run()
	}

	logger.Info("remapd stopped")
}
