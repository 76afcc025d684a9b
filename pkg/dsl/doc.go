/*
Package dsl provides a fluent Go builder for protocol documents.

It is an alternative to writing protocols in YAML or JSON: the builder
produces the same domain.Protocol the compiler parses, checked the same way.

Example usage:

	b := dsl.New("plate fill").Author("lab")
	b.Labware("tips", "opentrons_96_tiprack_300ul", "1")
	b.Labware("plate", "corning_96_wellplate_360ul_flat", "2")
	b.Pipette("left", "p300_single_v1").TipRacks("tips")

	b.Distribute(50, "plate/A1", "plate/B1", "plate/C1").NewTip("once")
	b.Mix(3, 100, "plate/B1").Mount("left")

	proto, err := b.Build()
	// ... hand proto to runner.Run or aliquot.Robot.Run
*/
package dsl
