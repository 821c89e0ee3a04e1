package clock

import "errors"

// ErrNotFound is returned when no tournament or clock state exists for the id.
var ErrNotFound = errors.New("tournament not found")

// ErrInvalidTransition is returned when an operation is not valid in the
// clock's current status, e.g. pausing a clock that is not running.
var ErrInvalidTransition = errors.New("invalid clock transition")

// ErrNoSchedule is returned when the clock is started without a blind
// schedule assigned to the tournament.
var ErrNoSchedule = errors.New("no blind schedule assigned")

// ErrInvalidLevel is returned when a requested level is outside [1, N].
var ErrInvalidLevel = errors.New("level out of range")

// ErrAtFirstLevel is returned when advancing backwards from level 1.
var ErrAtFirstLevel = errors.New("already at first level")

// ErrAtLastLevel is returned when advancing forwards from the last level.
var ErrAtLastLevel = errors.New("already at last level")
