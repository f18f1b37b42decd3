// Package tts speaks short status announcements through whichever speech
// synthesiser is installed.
package tts

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

// Engines in order of preference
var Engines = []string{"spd-say", "espeak-ng", "espeak"}

// Announcer speaks text. A disabled announcer, or one with no engine on PATH,
// does nothing.
type Announcer struct {
	run    runner.Runner
	cfg    core.TTSConfig
	logger zerolog.Logger

	once   sync.Once
	engine string
}

// New creates an announcer
func New(r runner.Runner, cfg core.TTSConfig, logger *zerolog.Logger) *Announcer {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Announcer{run: r, cfg: cfg, logger: l.With().Str("component", "tts").Logger()}
}

// Enabled reports whether announcements will be spoken
func (a *Announcer) Enabled() bool {
	return a != nil && a.cfg.Enabled && a.Engine() != ""
}

// Engine returns the synthesiser in use, or "" when none is installed
func (a *Announcer) Engine() string {
	a.once.Do(func() {
		for _, e := range Engines {
			if runner.Exists(a.run, e) {
				a.engine = e
				return
			}
		}
	})
	return a.engine
}

// Say speaks text and waits for the synthesiser to finish
func (a *Announcer) Say(ctx context.Context, text string) {
	if !a.Enabled() || text == "" {
		return
	}

	cmd := runner.Command{Name: a.engine, Args: a.args(text)}
	if _, err := a.run.Run(ctx, cmd); err != nil {
		a.logger.Debug().Err(err).Str("engine", a.engine).Msg("announcement failed")
	}
}

func (a *Announcer) args(text string) []string {
	var args []string
	switch a.engine {
	case "spd-say":
		args = append(args, "--wait")
		if a.cfg.Voice != "" {
			args = append(args, "-t", a.cfg.Voice)
		}
		if a.cfg.Rate != 0 {
			// spd-say takes -100..100
			args = append(args, "-r", strconv.Itoa(clamp(a.cfg.Rate, -100, 100)))
		}
	default:
		if a.cfg.Voice != "" {
			args = append(args, "-v", a.cfg.Voice)
		}
		if a.cfg.Rate > 0 {
			// espeak takes words per minute
			args = append(args, "-s", strconv.Itoa(a.cfg.Rate))
		}
	}
	return append(args, "--", text)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
