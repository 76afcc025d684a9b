package ports

import (
	"context"

	"github.com/aretw0/aliquot/pkg/domain"
)

// TipRack is labware with per-well tip bookkeeping.
type TipRack interface {
	domain.Labware

	// NextTip returns the first well with channels contiguous tips in one
	// column, starting at start when it is not nil. ok is false when the
	// rack has no such column.
	NextTip(ctx context.Context, channels int, start domain.Well) (well domain.Well, ok bool, err error)
	// UseTips marks the tips taken by a channels-wide pick-up at well.
	// It fails with domain.ErrTipUnavailable if any of them is gone.
	UseTips(ctx context.Context, well domain.Well, channels int) error
	// ReturnTips is the inverse of UseTips. It fails with domain.ErrTipReturn
	// when a slot is still occupied.
	ReturnTips(ctx context.Context, well domain.Well, channels int) error
	// Reset marks every tip as available.
	Reset(ctx context.Context) error
}

// TipStore persists which wells of each rack have been used.
type TipStore interface {
	// Used returns the set of used well names of a rack.
	Used(ctx context.Context, rackID string) (map[string]bool, error)
	MarkUsed(ctx context.Context, rackID string, wells []string) error
	MarkAvailable(ctx context.Context, rackID string, wells []string) error
	Reset(ctx context.Context, rackID string) error
}
