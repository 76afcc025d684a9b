/*
Package domain contains the core models of the Aliquot liquid handler.

It defines the values the rest of the module passes around: mounts, points and
locations, the labware and well contracts, instrument facts, transfer requests
and the plans compiled from them. This package is kept pure and free of I/O,
following Hexagonal Architecture principles.

# Key Entities

  - Location: a point, optionally anchored to a Well or a Labware.
  - Target: what a primitive operation acts on (a location, a well, or the cache).
  - TransferRequest: a transfer, distribute or consolidate request with its options.
  - Plan: the ordered primitive calls compiled from a TransferRequest.
  - Protocol: a declarative protocol document (labware, instruments, commands).
*/
package domain
