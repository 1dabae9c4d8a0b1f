package config

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wrale/fantuner/internal/apperr"
	"github.com/wrale/fantuner/internal/curve"
	"github.com/wrale/fantuner/internal/events"
)

// ConfigurationChanged is published on Service.Changed() whenever a
// mutation commits, carrying the new snapshot.
type ConfigurationChanged struct {
	Config *AppConfiguration
}

// Service is the in-memory authority over the current AppConfiguration,
// serializing all mutations through Store and broadcasting each
// committed change. Callers never see a partially-applied edit: every
// mutating method either succeeds and persists, or leaves the in-memory
// snapshot untouched.
type Service struct {
	store  Store
	logger *zap.Logger

	mu      sync.RWMutex
	current *AppConfiguration

	changed *events.Topic[ConfigurationChanged]
}

// NewService loads the initial snapshot from store and returns a ready
// Service. A Load error is logged but never fatal: the service falls
// back to whatever Store.Load itself returned (typically Defaults()).
func NewService(ctx context.Context, store Store, logger *zap.Logger) (*Service, error) {
	cfg, err := store.Load(ctx)
	if err != nil {
		logger.Warn("configuration load degraded, continuing with fallback", zap.Error(err))
	}

	return &Service{
		store:   store,
		logger:  logger,
		current: cfg,
		changed: events.NewTopic[ConfigurationChanged](),
	}, nil
}

// Current returns the live snapshot. Callers must not mutate the
// returned value.
func (s *Service) Current() *AppConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Changed subscribes to configuration-change notifications.
func (s *Service) Changed(buffer int) (<-chan ConfigurationChanged, func()) {
	return s.changed.Subscribe(buffer)
}

// Update applies mutate to a copy of the current snapshot, validates
// and persists the result, and only then swaps it in and publishes the
// change. mutate returning an error aborts the update with no side
// effects.
func (s *Service) Update(ctx context.Context, mutate func(cfg *AppConfiguration) error) (*AppConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneConfig(s.current)
	if err := mutate(next); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, next); err != nil {
		return nil, err
	}

	s.current = next
	s.changed.Publish(ConfigurationChanged{Config: next})
	return next, nil
}

// ReplaceAll validates and installs newCfg wholesale, used by the IPC
// SetConfig operation which hands over a full configuration document
// rather than a targeted mutation.
func (s *Service) ReplaceAll(ctx context.Context, newCfg *AppConfiguration) (*AppConfiguration, error) {
	return s.Update(ctx, func(cfg *AppConfiguration) error {
		*cfg = *newCfg
		return nil
	})
}

// SaveCurve inserts or replaces a curve by ID after normalizing and
// validating it.
func (s *Service) SaveCurve(ctx context.Context, c *curve.Curve) (*AppConfiguration, error) {
	norm := curve.NormalizeCurve(c)
	if err := curve.ValidateCurve(norm); err != nil {
		return nil, apperr.Wrap("config.SaveCurve", apperr.ConfigInvalid, "curve failed validation", err)
	}

	return s.Update(ctx, func(cfg *AppConfiguration) error {
		cfg.Curves[norm.ID] = *norm
		return nil
	})
}

// DeleteCurve removes a curve and downgrades every assignment that
// referenced it to ModeAuto, across every profile, rather than leaving
// a dangling reference.
func (s *Service) DeleteCurve(ctx context.Context, curveID string) (*AppConfiguration, error) {
	return s.Update(ctx, func(cfg *AppConfiguration) error {
		if _, ok := cfg.Curves[curveID]; !ok {
			return apperr.New("config.DeleteCurve", apperr.NotFound, "curve not found")
		}
		delete(cfg.Curves, curveID)

		for key, profile := range cfg.Profiles {
			changed := false
			for fanKey, a := range profile.Assignments {
				if a.Mode == ModeCurve && a.CurveID == curveID {
					a.Mode = ModeAuto
					a.CurveID = ""
					profile.Assignments[fanKey] = a
					changed = true
				}
			}
			if changed {
				cfg.Profiles[key] = profile
			}
		}
		return nil
	})
}

// SaveProfile inserts or replaces a profile by ID.
func (s *Service) SaveProfile(ctx context.Context, p *FanProfile) (*AppConfiguration, error) {
	return s.Update(ctx, func(cfg *AppConfiguration) error {
		cfg.Profiles[p.ID] = *p
		return nil
	})
}

// DeleteProfile removes a profile by ID. The default profile cannot be
// deleted.
func (s *Service) DeleteProfile(ctx context.Context, profileID string) (*AppConfiguration, error) {
	return s.Update(ctx, func(cfg *AppConfiguration) error {
		p, ok := cfg.Profiles[profileID]
		if !ok {
			return apperr.New("config.DeleteProfile", apperr.NotFound, "profile not found")
		}
		if p.IsDefault {
			return apperr.New("config.DeleteProfile", apperr.DefaultProtected, "the default profile cannot be deleted")
		}

		delete(cfg.Profiles, profileID)

		if cfg.ActiveProfileID == profileID {
			for id, candidate := range cfg.Profiles {
				if candidate.IsDefault {
					cfg.ActiveProfileID = id
					break
				}
			}
		}
		return nil
	})
}

// SetActiveProfile switches the active profile. profileID must resolve
// to an existing profile.
func (s *Service) SetActiveProfile(ctx context.Context, profileID string) (*AppConfiguration, error) {
	return s.Update(ctx, func(cfg *AppConfiguration) error {
		if _, ok := cfg.Profiles[profileID]; !ok {
			return apperr.New("config.SetActiveProfile", apperr.NotFound, "profile not found")
		}
		cfg.ActiveProfileID = profileID
		return nil
	})
}

// cloneConfig deep-copies cfg so mutate can fail without side effects on
// the live snapshot.
func cloneConfig(cfg *AppConfiguration) *AppConfiguration {
	out := *cfg

	out.Curves = make(map[string]curve.Curve, len(cfg.Curves))
	for id, c := range cfg.Curves {
		pts := make([]curve.Point, len(c.Points))
		copy(pts, c.Points)
		c.Points = pts
		out.Curves[id] = c
	}

	out.Profiles = make(map[string]FanProfile, len(cfg.Profiles))
	for id, p := range cfg.Profiles {
		assignments := make(map[string]FanAssignment, len(p.Assignments))
		for fanKey, a := range p.Assignments {
			assignments[fanKey] = a
		}
		p.Assignments = assignments
		out.Profiles[id] = p
	}

	return &out
}
