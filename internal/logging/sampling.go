package logging

import (
	"sort"

	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with per-level sampling.
// Error and above are never sampled; levels missing from cfg.Levels pass through.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	sampled := make([]zapcore.Level, 0, len(cfg.Levels))
	for lvl := range cfg.Levels {
		if lvl < zapcore.ErrorLevel {
			sampled = append(sampled, lvl)
		}
	}
	sort.Slice(sampled, func(i, j int) bool { return sampled[i] < sampled[j] })

	isSampled := func(l zapcore.Level) bool {
		for _, lvl := range sampled {
			if lvl == l {
				return true
			}
		}
		return false
	}

	cores := []zapcore.Core{
		&levelFilterCore{Core: core, allow: func(l zapcore.Level) bool { return !isSampled(l) }},
	}
	for _, lvl := range sampled {
		lvl := lvl
		rate := cfg.Levels[lvl]
		only := &levelFilterCore{Core: core, allow: func(l zapcore.Level) bool { return l == lvl }}
		cores = append(cores, zapcore.NewSamplerWithOptions(only, cfg.Tick.Duration(), rate.Initial, rate.Thereafter))
	}

	return zapcore.NewTee(cores...)
}

// levelFilterCore passes only entries whose level satisfies allow.
type levelFilterCore struct {
	zapcore.Core
	allow func(zapcore.Level) bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.allow(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.allow(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that keeps the level filter.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:  c.Core.With(fields),
		allow: c.allow,
	}
}
