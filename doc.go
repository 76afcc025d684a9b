/*
Package aliquot is the control core of a liquid-handling robot.

It tracks the software state of each pipette (attached tip, held volume,
flow rates), resolves where every motion goes, allocates tips from racks,
and turns high-level transfer requests into plans of primitive steps that
it executes on the hardware.

# Concept

A Robot owns one session on one piece of hardware. Hardware is reached
through the ports.Hardware interface, so the same protocol runs against the
simulator or a Smoothie-driven robot over serial. Every public operation
publishes "before" and "after" command events, which feed logging, metrics
and the HTTP event stream.

# Usage

Protocols are declarative documents (YAML, JSON or built with pkg/dsl): the
labware on the deck, the pipettes and the commands to run.

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/aliquot"
		"github.com/aretw0/aliquot/pkg/adapters/simulator"
		"github.com/aretw0/aliquot/pkg/domain"
	)

	func main() {
		hw, err := simulator.New(simulator.WithInstrument(domain.MountLeft, "p300_single_v1"))
		if err != nil {
			log.Fatal(err)
		}
		robot, err := aliquot.New(hw)
		if err != nil {
			log.Fatal(err)
		}
		report, err := robot.RunFile(context.Background(), "protocol.yaml")
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("ran %d steps", report.Completed)
	}

Use Simulate for a dry run that records every hardware call.
*/
package aliquot
