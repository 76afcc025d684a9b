package labware

import (
	"context"
	"fmt"

	"github.com/aretw0/aliquot/pkg/domain"
)

// own converts a domain.Well back to one of this labware's wells.
func (l *Labware) own(well domain.Well) (*Well, error) {
	w, ok := well.(*Well)
	if !ok || w.parent != l {
		return nil, fmt.Errorf("%w: %v is not a well of %s", domain.ErrInvalidArgument, well, l.id)
	}
	return w, nil
}

func (l *Labware) requireTipRack() error {
	if !l.def.IsTipRack {
		return fmt.Errorf("%w: %s is not a tip rack", domain.ErrInvalidArgument, l.id)
	}
	return nil
}

// NextTip walks the rack column by column. Within a column, leading empty
// wells are skipped and the run of tips ends at the first gap; the first
// column whose run has at least channels tips wins.
func (l *Labware) NextTip(ctx context.Context, channels int, start domain.Well) (domain.Well, bool, error) {
	if err := l.requireTipRack(); err != nil {
		return nil, false, err
	}
	if channels < 1 {
		channels = 1
	}

	startCol, startRow := 0, 0
	if start != nil {
		w, err := l.own(start)
		if err != nil {
			return nil, false, err
		}
		startCol, startRow = w.col, w.row
	}

	used, err := l.store.Used(ctx, l.id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read tip state of %s: %w", l.id, err)
	}

	for c := startCol; c < len(l.columns); c++ {
		col := l.columns[c]
		if c == startCol {
			col = col[startRow:]
		}

		first := 0
		for first < len(col) && used[col[first].name] {
			first++
		}
		end := first
		for end < len(col) && !used[col[end].name] {
			end++
		}
		if end-first >= channels {
			return col[first], true, nil
		}
	}
	return nil, false, nil
}

// tipsAt returns the wells a channels-wide pick-up at well touches.
func (l *Labware) tipsAt(well domain.Well, channels int) ([]string, error) {
	if err := l.requireTipRack(); err != nil {
		return nil, err
	}
	w, err := l.own(well)
	if err != nil {
		return nil, err
	}
	if channels < 1 {
		channels = 1
	}
	col := l.columns[w.col][w.row:]
	n := min(len(col), channels)

	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = col[i].name
	}
	return names, nil
}

// UseTips marks the tips at well as used.
func (l *Labware) UseTips(ctx context.Context, well domain.Well, channels int) error {
	names, err := l.tipsAt(well, channels)
	if err != nil {
		return err
	}
	used, err := l.store.Used(ctx, l.id)
	if err != nil {
		return fmt.Errorf("failed to read tip state of %s: %w", l.id, err)
	}
	for _, n := range names {
		if used[n] {
			return fmt.Errorf("%w: %s/%s", domain.ErrTipUnavailable, l.id, n)
		}
	}
	return l.store.MarkUsed(ctx, l.id, names)
}

// ReturnTips marks the tips at well as available again. It refuses to put a
// tip where the tracker says one already is.
func (l *Labware) ReturnTips(ctx context.Context, well domain.Well, channels int) error {
	names, err := l.tipsAt(well, channels)
	if err != nil {
		return err
	}
	used, err := l.store.Used(ctx, l.id)
	if err != nil {
		return fmt.Errorf("failed to read tip state of %s: %w", l.id, err)
	}
	for _, n := range names {
		if !used[n] {
			return fmt.Errorf("%w: %s/%s still holds a tip", domain.ErrTipReturn, l.id, n)
		}
	}
	return l.store.MarkAvailable(ctx, l.id, names)
}

// Reset marks every tip in the rack as available.
func (l *Labware) Reset(ctx context.Context) error {
	if err := l.requireTipRack(); err != nil {
		return err
	}
	return l.store.Reset(ctx, l.id)
}

// HasTip reports whether the tracker still lists a tip at well.
func (l *Labware) HasTip(ctx context.Context, well domain.Well) (bool, error) {
	w, err := l.own(well)
	if err != nil {
		return false, err
	}
	used, err := l.store.Used(ctx, l.id)
	if err != nil {
		return false, err
	}
	return !used[w.name], nil
}
