package config

import (
	"context"
	"strconv"
	"time"

	"menagerie/pkg/model"
	"menagerie/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
// Values are resolved live on every call so operator changes take effect
// without a restart.
type Provider interface {
	// Dispatch queue
	DispatchMinDelay(ctx context.Context) time.Duration
	DispatchSettleDelay(ctx context.Context) time.Duration
	DispatchRetryDelays(ctx context.Context) []time.Duration
	DispatchServerRetries(ctx context.Context) int
	DispatchServerRetryDelay(ctx context.Context) time.Duration

	// Scheduler
	SchedulerConfig(ctx context.Context) model.SchedulerConfig
	UpdateSchedulerConfig(ctx context.Context, patch model.SchedulerConfigPatch) error

	// Responder
	TypingDelayRange(ctx context.Context) (min, max time.Duration)
	DeliveryDelayRange(ctx context.Context) (min, max time.Duration)
	HistoryLimit(ctx context.Context) int
	GenerationTimeout(ctx context.Context) time.Duration

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

// --- Dispatch ---

func (p *UnifiedProvider) DispatchMinDelay(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyDispatchMinDelay, time.Duration(p.base.Dispatch.MinDelay))
}

func (p *UnifiedProvider) DispatchSettleDelay(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyDispatchSettleDelay, time.Duration(p.base.Dispatch.SettleDelay))
}

func (p *UnifiedProvider) DispatchRetryDelays(ctx context.Context) []time.Duration {
	delays := make([]time.Duration, len(p.base.Dispatch.RetryDelays))
	for i, d := range p.base.Dispatch.RetryDelays {
		delays[i] = time.Duration(d)
	}
	return delays
}

func (p *UnifiedProvider) DispatchServerRetries(ctx context.Context) int {
	return p.base.Dispatch.ServerRetries
}

func (p *UnifiedProvider) DispatchServerRetryDelay(ctx context.Context) time.Duration {
	return time.Duration(p.base.Dispatch.ServerRetryDelay)
}

// --- Scheduler ---

func (p *UnifiedProvider) SchedulerConfig(ctx context.Context) model.SchedulerConfig {
	base := p.base.Scheduler
	return model.SchedulerConfig{
		MinPostIntervalMinutes:    p.getInt(ctx, KeyMinPostInterval, base.MinPostIntervalMinutes),
		MaxPostIntervalMinutes:    p.getInt(ctx, KeyMaxPostInterval, base.MaxPostIntervalMinutes),
		MinCommentIntervalMinutes: p.getInt(ctx, KeyMinCommentInterval, base.MinCommentIntervalMinutes),
		MaxCommentIntervalMinutes: p.getInt(ctx, KeyMaxCommentInterval, base.MaxCommentIntervalMinutes),
		ImagePostChance:           p.getFloat64(ctx, KeyImagePostChance, base.ImagePostChance),
		CommentChance:             p.getFloat64(ctx, KeyCommentChance, base.CommentChance),
	}
}

// UpdateSchedulerConfig persists the non-nil fields of the patch to the state
// store. Subsequent SchedulerConfig calls observe the new values.
func (p *UnifiedProvider) UpdateSchedulerConfig(ctx context.Context, patch model.SchedulerConfigPatch) error {
	if patch.MinPostIntervalMinutes != nil {
		if err := p.setInt(ctx, KeyMinPostInterval, *patch.MinPostIntervalMinutes); err != nil {
			return err
		}
	}
	if patch.MaxPostIntervalMinutes != nil {
		if err := p.setInt(ctx, KeyMaxPostInterval, *patch.MaxPostIntervalMinutes); err != nil {
			return err
		}
	}
	if patch.MinCommentIntervalMinutes != nil {
		if err := p.setInt(ctx, KeyMinCommentInterval, *patch.MinCommentIntervalMinutes); err != nil {
			return err
		}
	}
	if patch.MaxCommentIntervalMinutes != nil {
		if err := p.setInt(ctx, KeyMaxCommentInterval, *patch.MaxCommentIntervalMinutes); err != nil {
			return err
		}
	}
	if patch.ImagePostChance != nil {
		if err := p.setFloat64(ctx, KeyImagePostChance, *patch.ImagePostChance); err != nil {
			return err
		}
	}
	if patch.CommentChance != nil {
		if err := p.setFloat64(ctx, KeyCommentChance, *patch.CommentChance); err != nil {
			return err
		}
	}
	return nil
}

// --- Responder ---

func (p *UnifiedProvider) TypingDelayRange(ctx context.Context) (minD, maxD time.Duration) {
	return time.Duration(p.base.Responder.TypingDelayMin), time.Duration(p.base.Responder.TypingDelayMax)
}

func (p *UnifiedProvider) DeliveryDelayRange(ctx context.Context) (minD, maxD time.Duration) {
	return time.Duration(p.base.Responder.DeliveryDelayMin), time.Duration(p.base.Responder.DeliveryDelayMax)
}

func (p *UnifiedProvider) HistoryLimit(ctx context.Context) int {
	return p.getInt(ctx, KeyHistoryLimit, p.base.Responder.HistoryLimit)
}

func (p *UnifiedProvider) GenerationTimeout(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyGenerationTimeout, time.Duration(p.base.Responder.GenerationTimeout))
}

// --- Helpers ---

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if dur, err := ParseDuration(val); err == nil {
				return dur
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) setInt(ctx context.Context, key string, val int) error {
	return p.store.SetState(ctx, key, strconv.Itoa(val))
}

func (p *UnifiedProvider) setFloat64(ctx context.Context, key string, val float64) error {
	return p.store.SetState(ctx, key, strconv.FormatFloat(val, 'f', -1, 64))
}
