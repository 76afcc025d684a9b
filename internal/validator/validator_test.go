package validator

import (
	"errors"
	"testing"

	"github.com/aretw0/aliquot/internal/compiler"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, doc string) *domain.Protocol {
	t.Helper()
	proto, err := compiler.NewParser().Parse([]byte(doc))
	require.NoError(t, err)
	return proto
}

func paths(t *testing.T, err error) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, e := range compiler.ValidationErrors(err) {
		var ve *compiler.ValidationError
		require.True(t, errors.As(e, &ve))
		out[ve.Path] = ve.Reason
	}
	return out
}

const deckDoc = `
labware:
  - {id: tips, load_name: opentrons_96_tiprack_300ul, slot: "1"}
  - {id: plate, load_name: corning_96_wellplate_360ul_flat, slot: "2"}
instruments:
  - {mount: left, name: p300_single_v1, tip_racks: [tips], starting_tip: tips/B1}
modules:
  - {id: mag, kind: magnetic, slot: "4"}
`

func TestValidate_Valid(t *testing.T) {
	proto := parse(t, deckDoc+`
commands:
  - {command: pick_up_tip, params: {rack: tips}}
  - {command: aspirate, params: {volume: 50, well: plate/H12}}
  - {command: dispense, params: {volume: 50, well: trash/A1, position: top}}
  - {command: transfer, params: {volume: 10, source: plate/A1, dests: [plate/B1, plate/C1]}}
  - {command: engage, params: {module: mag, height: 12}}
  - {command: home}
`)
	assert.NoError(t, Validate(proto, WithCommands([]string{"pick_up_tip", "aspirate", "dispense", "transfer", "engage", "home"})))
}

func TestValidate_DeckErrors(t *testing.T) {
	proto := parse(t, `
labware:
  - {id: tips, load_name: opentrons_96_tiprack_300ul, slot: "1"}
  - {id: plate, load_name: corning_96_wellplate_360ul_flat, slot: "1"}
  - {id: res, load_name: mystery_reservoir, slot: "13"}
  - {id: trash, load_name: corning_96_wellplate_360ul_flat, slot: "12"}
instruments:
  - {mount: left, name: p900_single, tip_racks: [plate, ghost], trash: bin, starting_tip: tips/A1}
modules:
  - {id: a, kind: magnetic, slot: "4"}
  - {id: b, kind: temperature, slot: "4"}
`)
	err := Validate(proto)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	got := paths(t, err)
	assert.Contains(t, got["labware[1].slot"], "already used by \"tips\"")
	assert.Contains(t, got["labware[2].load_name"], "mystery_reservoir")
	assert.Contains(t, got["labware[2].slot"], "unknown slot")
	assert.Contains(t, got["labware[3].id"], "reserved")
	assert.Contains(t, got["labware[3].slot"], "already used by \"trash\"")
	assert.Contains(t, got["instruments[0].name"], "p900_single")
	assert.Contains(t, got["instruments[0].tip_racks[0]"], "not a tip rack")
	assert.Contains(t, got["instruments[0].tip_racks[1]"], "unknown labware")
	assert.Contains(t, got["instruments[0].trash"], "bin")
	assert.Contains(t, got["instruments[0].starting_tip"], "not one of the instrument's tip racks")
	assert.Contains(t, got["modules[1].slot"], "already used by module \"a\"")
}

func TestValidate_CommandErrors(t *testing.T) {
	proto := parse(t, deckDoc+`
  - {id: cold, kind: temperature, slot: "5"}
commands:
  - {command: levitate}
  - {command: aspirate, params: {volume: 10, well: plate/Z1}}
  - {command: aspirate, params: {volume: 10, well: A1}}
  - {command: transfer, params: {volume: 10, sources: plate/A1, dest: reservoir/A1}}
  - {command: distribute, params: {volume: 10, source: plate/A1, dests: [plate/B1, 7]}}
  - {command: pick_up_tip, params: {rack: plate}}
  - {command: set_temperature, params: {module: hot, celsius: 4}}
  - {command: home, params: {mount: right}}
`)
	err := Validate(proto, WithCommands([]string{"aspirate", "transfer", "distribute", "pick_up_tip", "set_temperature", "home"}))
	got := paths(t, err)

	assert.Contains(t, got["commands[0].command"], "levitate")
	assert.Contains(t, got["commands[1].params.well"], "no well \"Z1\"")
	assert.Contains(t, got["commands[2].params.well"], "not a <labware>/<well>")
	assert.Contains(t, got["commands[3].params.sources"], "must be a list")
	assert.Contains(t, got["commands[3].params.dest"], "unknown labware \"reservoir\"")
	assert.Contains(t, got["commands[4].params.dests[1]"], "must be a well reference")
	assert.Contains(t, got["commands[5].params.rack"], "not a tip rack")
	assert.Contains(t, got["commands[6].params.module"], "hot")
	assert.Contains(t, got["commands[7].params.mount"], "no instrument on the right mount")
	assert.Len(t, got, 9)
}

func TestValidate_MountRequired(t *testing.T) {
	proto := parse(t, deckDoc+`
commands:
  - {command: aspirate, params: {volume: 10, well: plate/A1}}
`)
	proto.Instruments = append(proto.Instruments, domain.InstrumentSpec{Mount: "right"})

	got := paths(t, Validate(proto))
	assert.Contains(t, got["commands[0].params.mount"], "is required")
}
