/*
Package ports defines the driven ports (interfaces) of the Aliquot core.

These interfaces decouple the instrument logic from the robot it drives,
allowing the same protocols to run against a simulator, a Smoothie board over
serial, or a test double.

# Key Interfaces

  - Hardware: motion, plunger and tip primitives for one robot.
  - ModuleController: temperature, magnet and lid commands for deck modules.
  - Geometry: collision-avoiding waypoint generation.
  - TipRack: per-well tip availability bookkeeping.
  - TipStore: raw tip-tracking storage (memory or Redis).
  - DistributedLocker: cross-replica locking for shared robots.
*/
package ports
