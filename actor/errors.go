package actor

import "errors"

// ErrDead is returned by Send when the target actor has already exited.
// Holding on to a handle past the actor's lifetime is legal; sending through
// it just stops working.
var ErrDead = errors.New("actor is dead")
