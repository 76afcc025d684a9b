package domain

import "errors"

// ErrNoTipAttached is returned when a liquid-handling operation runs on an instrument without a tip.
var ErrNoTipAttached = errors.New("no tip attached")

// ErrOutOfTips is returned when no assigned tip rack has a usable tip left.
var ErrOutOfTips = errors.New("out of tips")

// ErrUnresolvedLocation is returned when an operation has neither an explicit nor a cached location.
var ErrUnresolvedLocation = errors.New("cannot resolve location")

// ErrInvalidArgument covers non-positive rates and speeds, malformed volumes and mismatched lists.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrTipUnavailable is returned by a tip rack when a requested tip was already used.
var ErrTipUnavailable = errors.New("tip unavailable")

// ErrTipReturn is returned by a tip rack when a tip cannot be put back in its slot.
// Callers on the drop/return path log it and move on.
var ErrTipReturn = errors.New("cannot return tip")

// ErrHardwareFault is wrapped by hardware adapters for every failure they report.
var ErrHardwareFault = errors.New("hardware fault")

// ErrLabwareNotFound is returned when a labware definition, slot or well reference is unknown.
var ErrLabwareNotFound = errors.New("labware not found")

// ErrInstrumentNotFound is returned when no instrument is loaded on a mount.
var ErrInstrumentNotFound = errors.New("instrument not found")

// ErrModuleNotFound is returned when a module ID is unknown.
var ErrModuleNotFound = errors.New("module not found")

// ErrSessionNotFound is returned when a session ID cannot be found in the manager.
var ErrSessionNotFound = errors.New("session not found")
