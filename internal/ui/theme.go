package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bamsammich/ward/internal/config"
)

// Theme holds the ANSI sequences the HUD renders with.
type Theme struct {
	Green  string
	Red    string
	Dim    string
	Bright string
	Reset  string
}

// DefaultTheme uses the basic SGR attributes every terminal understands.
func DefaultTheme() Theme {
	return Theme{
		Green:  "\033[32m",
		Red:    "\033[31m",
		Dim:    ansiDim,
		Bright: ansiBold,
		Reset:  ansiReset,
	}
}

// ThemeFromConfig overlays config file overrides onto the default theme.
// Values that do not parse as "#rrggbb" keep the default.
func ThemeFromConfig(cfg config.ThemeConfig) Theme {
	th := DefaultTheme()
	overlay(&th.Green, cfg.Green)
	overlay(&th.Red, cfg.Red)
	overlay(&th.Dim, cfg.Dim)
	overlay(&th.Bright, cfg.Bright)
	return th
}

func overlay(dst *string, hex *string) {
	if hex == nil {
		return
	}
	if seq, ok := truecolor(*hex); ok {
		*dst = seq
	}
}

// truecolor converts "#rrggbb" into a 24-bit foreground escape.
func truecolor(hex string) (string, bool) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return "", false
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("\033[38;2;%d;%d;%dm", (n>>16)&0xff, (n>>8)&0xff, n&0xff), true
}
