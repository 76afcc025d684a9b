// Package runtime holds the robot session: the location cache, loaded
// labware and modules, and the per-mount instrument state machines that
// turn primitive liquid-handling operations into hardware calls.
//
// A Session is not safe for concurrent use. Callers issue one operation at
// a time; pkg/session serializes access when a session is shared.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/aliquot/internal/logging"
	"github.com/aretw0/aliquot/pkg/adapters/memory"
	"github.com/aretw0/aliquot/pkg/deck"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/labware"
	"github.com/aretw0/aliquot/pkg/ports"
)

const (
	// DefaultSpeed is the gantry speed in mm/s for moves without an explicit speed.
	DefaultSpeed = 400.0
	// TrashID is the labware ID of the fixed trash loaded with every session.
	TrashID = "trash"
	// FixedTrashLoadName is the definition loaded as the fixed trash.
	FixedTrashLoadName = "opentrons_1_trash_1100ml_fixed"
)

// Session owns everything a protocol run shares: the hardware handle, the
// deck, the tip store, the location cache and the loaded instruments.
type Session struct {
	hw       ports.Hardware
	modules  ports.ModuleController
	geometry ports.Geometry
	deck     *deck.Deck
	store    ports.TipStore
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	speed    float64

	cache       *domain.Location
	labware     map[string]*labware.Labware
	instruments map[domain.Mount]*Instrument
	loaded      map[string]*Module
	trash       *labware.Labware
}

// Option configures a Session.
type Option func(*Session)

// WithLifecycleHooks registers command event callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Session) {
		s.hooks = hooks
	}
}

// WithLogger sets a structured logger for the session and its instruments.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithTipStore shares tip bookkeeping through the given store.
func WithTipStore(store ports.TipStore) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithModuleController enables temperature, magnetic and thermocycler modules.
func WithModuleController(mc ports.ModuleController) Option {
	return func(s *Session) {
		s.modules = mc
	}
}

// WithGeometry replaces the default arc planner over the session deck.
func WithGeometry(g ports.Geometry) Option {
	return func(s *Session) {
		s.geometry = g
	}
}

// WithDefaultSpeed sets the gantry speed new instruments start with.
func WithDefaultSpeed(mmPerSec float64) Option {
	return func(s *Session) {
		s.speed = mmPerSec
	}
}

// NewSession creates a session on the given hardware and loads the fixed trash.
func NewSession(hw ports.Hardware, opts ...Option) (*Session, error) {
	s := &Session{
		hw:          hw,
		deck:        deck.New(),
		logger:      logging.NewNop(),
		speed:       DefaultSpeed,
		labware:     make(map[string]*labware.Labware),
		instruments: make(map[domain.Mount]*Instrument),
		loaded:      make(map[string]*Module),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = memory.NewTipStore()
	}
	if s.geometry == nil {
		s.geometry = deck.NewPlanner(s.deck)
	}
	if s.speed <= 0 {
		return nil, fmt.Errorf("%w: default speed must be > 0", domain.ErrInvalidArgument)
	}

	trash, err := s.LoadLabware(FixedTrashLoadName, deck.FixedTrashSlot, labware.WithID(TrashID))
	if err != nil {
		return nil, fmt.Errorf("failed to load fixed trash: %w", err)
	}
	s.trash = trash
	return s, nil
}

// Hardware returns the current hardware handle.
func (s *Session) Hardware() ports.Hardware { return s.hw }

// Deck returns the session deck.
func (s *Session) Deck() *deck.Deck { return s.deck }

// FixedTrash returns the trash loaded in slot 12.
func (s *Session) FixedTrash() *labware.Labware { return s.trash }

// LoadLabware places a labware definition in a deck slot. Unless overridden
// with labware.WithID, its ID is "<load name>-<slot>".
func (s *Session) LoadLabware(loadName, slot string, opts ...labware.Option) (*labware.Labware, error) {
	origin, err := deck.SlotOrigin(slot)
	if err != nil {
		return nil, err
	}
	base := []labware.Option{
		labware.WithID(fmt.Sprintf("%s-%s", loadName, slot)),
		labware.WithTipStore(s.store),
	}
	lw, err := labware.Load(loadName, origin, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if _, dup := s.labware[lw.ID()]; dup {
		return nil, fmt.Errorf("%w: labware id %q is already loaded", domain.ErrInvalidArgument, lw.ID())
	}
	if err := s.deck.Place(slot, lw); err != nil {
		return nil, err
	}
	s.labware[lw.ID()] = lw
	s.logger.Debug("labware loaded", "id", lw.ID(), "load_name", loadName, "slot", slot)
	return lw, nil
}

// Labware returns loaded labware by ID.
func (s *Session) Labware(id string) (*labware.Labware, error) {
	lw, ok := s.labware[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrLabwareNotFound, id)
	}
	return lw, nil
}

// LabwareIDs lists loaded labware IDs, sorted.
func (s *Session) LabwareIDs() []string {
	ids := make([]string, 0, len(s.labware))
	for id := range s.labware {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Instrument returns the instrument loaded on a mount.
func (s *Session) Instrument(mount domain.Mount) (*Instrument, error) {
	inst, ok := s.instruments[mount]
	if !ok {
		return nil, fmt.Errorf("%w: %s mount", domain.ErrInstrumentNotFound, mount)
	}
	return inst, nil
}

// Instruments returns every loaded instrument, left before right.
func (s *Session) Instruments() []*Instrument {
	out := make([]*Instrument, 0, len(s.instruments))
	for _, m := range []domain.Mount{domain.MountLeft, domain.MountRight} {
		if inst, ok := s.instruments[m]; ok {
			out = append(out, inst)
		}
	}
	return out
}

// LocationCache returns the target of the last successful move, if any.
func (s *Session) LocationCache() (domain.Location, bool) {
	if s.cache == nil {
		return domain.Location{}, false
	}
	return *s.cache, true
}

// ClearLocationCache forgets the last known location.
func (s *Session) ClearLocationCache() {
	s.cache = nil
}

func (s *Session) setCache(loc domain.Location) {
	s.cache = &loc
}

// Reconnect swaps the hardware handle. The location cache is cleared since
// the new hardware may be anywhere.
func (s *Session) Reconnect(hw ports.Hardware) {
	s.hw = hw
	s.ClearLocationCache()
	s.logger.Info("hardware reconnected")
}

// Home clears the location cache and homes every axis.
func (s *Session) Home(ctx context.Context) error {
	return s.run(ctx, "home", "", nil, func() error {
		s.ClearLocationCache()
		return s.hw.Home(ctx)
	})
}

// Pause is forwarded to the hardware.
func (s *Session) Pause(ctx context.Context) error {
	return s.run(ctx, "pause", "", nil, func() error {
		return s.hw.Pause(ctx)
	})
}

// Resume is forwarded to the hardware.
func (s *Session) Resume(ctx context.Context) error {
	return s.run(ctx, "resume", "", nil, func() error {
		return s.hw.Resume(ctx)
	})
}

// Delay waits on the hardware for d.
func (s *Session) Delay(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative delay %s", domain.ErrInvalidArgument, d)
	}
	return s.run(ctx, "delay", "", map[string]any{"seconds": d.Seconds()}, func() error {
		return s.hw.Delay(ctx, d)
	})
}

// Comment publishes a message without touching hardware.
func (s *Session) Comment(ctx context.Context, msg string) {
	_ = s.run(ctx, "comment", "", map[string]any{"text": msg}, func() error {
		s.logger.InfoContext(ctx, msg)
		return nil
	})
}

// run publishes the before event, calls fn, and publishes the after event
// only when fn succeeds.
func (s *Session) run(ctx context.Context, command string, mount domain.Mount, args map[string]any, fn func() error) error {
	s.publish(ctx, domain.PhaseBefore, command, mount, args)
	if err := fn(); err != nil {
		return err
	}
	s.publish(ctx, domain.PhaseAfter, command, mount, args)
	return nil
}

func (s *Session) publish(ctx context.Context, phase domain.EventPhase, command string, mount domain.Mount, args map[string]any) {
	var hook func(context.Context, *domain.CommandEvent)
	if phase == domain.PhaseBefore {
		hook = s.hooks.OnCommandBefore
	} else {
		hook = s.hooks.OnCommandAfter
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.CommandEvent{
		Timestamp: time.Now(),
		Phase:     phase,
		Command:   command,
		Mount:     mount,
		Args:      args,
	})
}
