package lifecycle

import (
	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/models"
)

// Event names the lifecycle inputs a persisted ride can receive. Quoting
// happens before a ride exists, so it is not an Event.
type Event string

const (
	EventConfirm Event = "confirm"
	EventStart   Event = "start"
	EventFinish  Event = "finish"
	EventCancel  Event = "cancel"
)

// transitions is the full (state, event) -> state table. Anything absent
// here is an invalid transition.
var transitions = map[models.RideStatus]map[Event]models.RideStatus{
	models.StatusRequested: {
		EventConfirm: models.StatusDriverAssigned,
		EventCancel:  models.StatusCancelled,
	},
	models.StatusDriverAssigned: {
		EventStart:  models.StatusInProgress,
		EventCancel: models.StatusCancelled,
	},
	models.StatusInProgress: {
		EventFinish: models.StatusCompleted,
	},
}

// Next returns the state a ride in `from` moves to on `ev`, or a transition
// error if `from` does not list `ev` as a valid input.
func Next(from models.RideStatus, ev Event) (models.RideStatus, error) {
	if byEvent, ok := transitions[from]; ok {
		if to, ok := byEvent[ev]; ok {
			return to, nil
		}
	}
	return from, apperr.Transitionf("event %q not allowed in state %q", ev, from)
}
