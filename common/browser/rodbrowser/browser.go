package rodbrowser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"
)

// Config controls how the browser process is reached and how tabs are opened
type Config struct {
	ControlURL        string
	Bin               string
	Headless          bool
	Stealth           bool
	Incognito         bool
	NavigationTimeout time.Duration
	PollInterval      time.Duration
	Flags             []string
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		Stealth:           true,
		Incognito:         true,
		NavigationTimeout: 30 * time.Second,
		PollInterval:      200 * time.Millisecond,
	}
}

// Browser owns one browser process connection and hands out isolated sessions
type Browser struct {
	cfg      Config
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// Connect attaches to ControlURL, or launches a local browser when it is empty
func Connect(ctx context.Context, cfg Config) (*Browser, error) {
	b := &Browser{cfg: cfg}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(cfg.Headless).
			NoSandbox(true).
			Set("disable-dev-shm-usage").
			Set("disable-gpu").
			Set("window-size", "1920,1080")
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		for _, raw := range cfg.Flags {
			name, values := launcherFlag(raw)
			l = l.Set(name, values...)
		}

		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if b.launcher != nil {
			b.launcher.Kill()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	// detach the long-lived connection from the dial context
	b.browser = browser.Context(context.Background())

	log.Info().
		Str("controlURL", controlURL).
		Bool("headless", cfg.Headless).
		Bool("stealth", cfg.Stealth).
		Msg("Connected to browser")
	return b, nil
}

// NewSession opens a fresh tab, in its own incognito context when configured
func (b *Browser) NewSession(ctx context.Context) (*Session, error) {
	owner := b.browser
	var incognito *rod.Browser
	if b.cfg.Incognito {
		inc, err := b.browser.Incognito()
		if err != nil {
			return nil, fmt.Errorf("open incognito context: %w", err)
		}
		owner = inc
		incognito = inc
	}

	var page *rod.Page
	var err error
	if b.cfg.Stealth {
		page, err = stealth.Page(owner)
	} else {
		page, err = owner.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		if incognito != nil {
			_ = incognito.Close()
		}
		return nil, fmt.Errorf("open tab: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1920, Height: 1080}); err != nil {
		log.Warn().Err(err).Msg("Failed to set viewport")
	}

	return &Session{
		page:      page,
		incognito: incognito,
		cfg:       b.cfg,
	}, nil
}

// Close disconnects and, when this process launched the browser, kills it
func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// launcherFlag splits "--name=value" into a flag name and its values
func launcherFlag(raw string) (flags.Flag, []string) {
	name, value, found := strings.Cut(strings.TrimLeft(raw, "-"), "=")
	if !found {
		return flags.Flag(name), nil
	}
	return flags.Flag(name), strings.Split(value, ",")
}
