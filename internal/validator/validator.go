// Package validator checks the references inside a parsed protocol before it
// touches a robot: labware definitions and slots, pipette models, wells,
// mounts, modules and command names.
package validator

import (
	"fmt"
	"slices"

	"github.com/aretw0/aliquot/internal/compiler"
	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/pkg/deck"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/labware"
	"github.com/aretw0/aliquot/pkg/pipette"
)

// Option configures validation.
type Option func(*config)

type config struct {
	commands []string
}

// WithCommands restricts command names to the given set, typically
// registry.Names(). Without it command names are not checked.
func WithCommands(names []string) Option {
	return func(c *config) {
		c.commands = names
	}
}

// instrumentCommands act on a pipette and need a mount when more than one
// instrument is loaded.
var instrumentCommands = []string{
	"aspirate", "dispense", "mix", "blow_out", "touch_tip", "air_gap",
	"pick_up_tip", "drop_tip", "return_tip", "move_to",
	"transfer", "distribute", "consolidate",
}

type index struct {
	labware map[string]labware.Definition
	modules map[string]bool
	mounts  map[domain.Mount]bool
}

// Validate resolves every reference in proto. All problems are reported
// together as a *compiler.AggregateError.
func Validate(proto *domain.Protocol, opts ...Option) error {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	var c compiler.Collector
	idx := index{
		labware: make(map[string]labware.Definition),
		modules: make(map[string]bool),
		mounts:  make(map[domain.Mount]bool),
	}

	if trash, err := labware.Lookup(runtime.FixedTrashLoadName); err == nil {
		idx.labware[runtime.TrashID] = trash
	}
	slots := map[string]string{deck.FixedTrashSlot: runtime.TrashID}
	for i, spec := range proto.Labware {
		path := fmt.Sprintf("labware[%d]", i)
		if spec.ID == runtime.TrashID {
			c.Addf(path+".id", "%q is reserved for the fixed trash", spec.ID)
		}
		def, err := labware.Lookup(spec.LoadName)
		if err != nil {
			c.Addf(path+".load_name", "unknown labware %q", spec.LoadName)
		} else {
			idx.labware[spec.ID] = def
		}
		if _, err := deck.SlotOrigin(spec.Slot); err != nil {
			c.Addf(path+".slot", "unknown slot %q", spec.Slot)
		} else if other, taken := slots[spec.Slot]; taken {
			c.Addf(path+".slot", "slot %s is already used by %q", spec.Slot, other)
		} else {
			slots[spec.Slot] = spec.ID
		}
	}

	moduleSlots := make(map[string]string)
	for i, spec := range proto.Modules {
		path := fmt.Sprintf("modules[%d]", i)
		idx.modules[spec.ID] = true
		if _, err := deck.SlotOrigin(spec.Slot); err != nil {
			c.Addf(path+".slot", "unknown slot %q", spec.Slot)
		} else if other, taken := moduleSlots[spec.Slot]; taken {
			c.Addf(path+".slot", "slot %s is already used by module %q", spec.Slot, other)
		} else {
			moduleSlots[spec.Slot] = spec.ID
		}
	}

	for i, spec := range proto.Instruments {
		path := fmt.Sprintf("instruments[%d]", i)
		if m, err := domain.ParseMount(spec.Mount); err == nil {
			idx.mounts[m] = true
		}
		if spec.Name != "" {
			if _, err := pipette.Lookup(spec.Name); err != nil {
				c.Addf(path+".name", "unknown pipette model %q", spec.Name)
			}
		}
		for j, id := range spec.TipRacks {
			idx.tipRack(&c, fmt.Sprintf("%s.tip_racks[%d]", path, j), id)
		}
		if spec.Trash != "" {
			if _, ok := idx.labware[spec.Trash]; !ok {
				c.Addf(path+".trash", "unknown labware %q", spec.Trash)
			}
		}
		if spec.StartingTip != "" {
			if id, ok := idx.well(&c, path+".starting_tip", spec.StartingTip); ok && !slices.Contains(spec.TipRacks, id) {
				c.Addf(path+".starting_tip", "%q is not one of the instrument's tip racks", id)
			}
		}
	}

	for i, cmd := range proto.Commands {
		path := fmt.Sprintf("commands[%d]", i)
		if cfg.commands != nil && !slices.Contains(cfg.commands, cmd.Command) {
			c.Addf(path+".command", "unknown command %q", cmd.Command)
		}
		idx.params(&c, path+".params", cmd)
	}
	return c.Err()
}

func (idx index) params(c *compiler.Collector, path string, cmd domain.CommandSpec) {
	for _, key := range []string{"well", "source", "dest"} {
		if v, ok := cmd.Params[key]; ok {
			idx.wellValue(c, path+"."+key, v)
		}
	}
	for _, key := range []string{"sources", "dests"} {
		v, ok := cmd.Params[key]
		if !ok {
			continue
		}
		var list []any
		switch vs := v.(type) {
		case []any:
			list = vs
		case []string:
			for _, s := range vs {
				list = append(list, s)
			}
		default:
			c.Addf(path+"."+key, "must be a list of well references")
			continue
		}
		for j, item := range list {
			idx.wellValue(c, fmt.Sprintf("%s.%s[%d]", path, key, j), item)
		}
	}
	if v, ok := cmd.Params["rack"]; ok {
		id, _ := v.(string)
		idx.tipRack(c, path+".rack", id)
	}
	if v, ok := cmd.Params["module"]; ok {
		if id, _ := v.(string); !idx.modules[id] {
			c.Addf(path+".module", "unknown module %v", v)
		}
	}

	mount, hasMount := cmd.Params["mount"]
	switch {
	case hasMount:
		name, _ := mount.(string)
		m, err := domain.ParseMount(name)
		if err != nil {
			c.Addf(path+".mount", "unknown mount %v", mount)
		} else if !idx.mounts[m] {
			c.Addf(path+".mount", "no instrument on the %s mount", m)
		}
	case slices.Contains(instrumentCommands, cmd.Command) && len(idx.mounts) != 1:
		c.Addf(path+".mount", "is required with %d instruments configured", len(idx.mounts))
	}
}

func (idx index) wellValue(c *compiler.Collector, path string, v any) {
	ref, ok := v.(string)
	if !ok {
		c.Addf(path, "must be a well reference like plate/A1")
		return
	}
	idx.well(c, path, ref)
}

// well checks a "<labware>/<well>" reference and returns its labware ID.
func (idx index) well(c *compiler.Collector, path, ref string) (string, bool) {
	id, name, err := domain.ParseWellRef(ref)
	if err != nil {
		c.Addf(path, "%q is not a <labware>/<well> reference", ref)
		return "", false
	}
	def, ok := idx.labware[id]
	if !ok {
		c.Addf(path, "unknown labware %q", id)
		return "", false
	}
	if !def.HasWell(name) {
		c.Addf(path, "%s has no well %q", id, name)
		return "", false
	}
	return id, true
}

func (idx index) tipRack(c *compiler.Collector, path, id string) {
	def, ok := idx.labware[id]
	switch {
	case !ok:
		c.Addf(path, "unknown labware %q", id)
	case !def.IsTipRack:
		c.Addf(path, "%q is not a tip rack", id)
	}
}
