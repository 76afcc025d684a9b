// Package deck models the 12-slot work surface and plans collision-avoiding
// arc moves across it.
package deck

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aretw0/aliquot/pkg/domain"
)

// FixedTrashSlot holds the fixed trash on a standard deck.
const FixedTrashSlot = "12"

// slotOrigins are the front-left corners of the slots, numbered from the
// front-left, left to right then back.
var slotOrigins = map[string]domain.Point{
	"1": {X: 0, Y: 0}, "2": {X: 132.5, Y: 0}, "3": {X: 265, Y: 0},
	"4": {X: 0, Y: 90.5}, "5": {X: 132.5, Y: 90.5}, "6": {X: 265, Y: 90.5},
	"7": {X: 0, Y: 181}, "8": {X: 132.5, Y: 181}, "9": {X: 265, Y: 181},
	"10": {X: 0, Y: 271.5}, "11": {X: 132.5, Y: 271.5}, "12": {X: 265, Y: 271.5},
}

// Deck tracks what occupies each slot. Safe for concurrent use.
type Deck struct {
	mu    sync.RWMutex
	slots map[string]domain.Labware
}

// New creates an empty deck.
func New() *Deck {
	return &Deck{slots: make(map[string]domain.Labware)}
}

// SlotOrigin returns the front-left corner of a slot.
func SlotOrigin(slot string) (domain.Point, error) {
	p, ok := slotOrigins[slot]
	if !ok {
		return domain.Point{}, fmt.Errorf("%w: unknown slot %q", domain.ErrInvalidArgument, slot)
	}
	return p, nil
}

// Place puts labware in an empty slot.
func (d *Deck) Place(slot string, lw domain.Labware) error {
	if _, err := SlotOrigin(slot); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.slots[slot]; ok {
		return fmt.Errorf("%w: slot %s already holds %s", domain.ErrInvalidArgument, slot, cur.Name())
	}
	d.slots[slot] = lw
	return nil
}

// Remove empties a slot.
func (d *Deck) Remove(slot string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.slots, slot)
}

// At returns what occupies a slot.
func (d *Deck) At(slot string) (domain.Labware, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	lw, ok := d.slots[slot]
	return lw, ok
}

// Slots lists occupied slots in numeric order.
func (d *Deck) Slots() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.slots))
	for s := range d.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i])
		b, _ := strconv.Atoi(out[j])
		return a < b
	})
	return out
}

// HighestZ is the tallest point of anything on the deck.
func (d *Deck) HighestZ() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	z := 0.0
	for _, lw := range d.slots {
		z = max(z, lw.HighestZ())
	}
	return z
}
