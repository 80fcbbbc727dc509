package lifecycle

import (
	"testing"

	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/models"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from models.RideStatus
		ev   Event
		to   models.RideStatus
		ok   bool
	}{
		{models.StatusRequested, EventConfirm, models.StatusDriverAssigned, true},
		{models.StatusRequested, EventCancel, models.StatusCancelled, true},
		{models.StatusDriverAssigned, EventStart, models.StatusInProgress, true},
		{models.StatusDriverAssigned, EventCancel, models.StatusCancelled, true},
		{models.StatusInProgress, EventFinish, models.StatusCompleted, true},

		{models.StatusRequested, EventStart, "", false},
		{models.StatusRequested, EventFinish, "", false},
		{models.StatusDriverAssigned, EventConfirm, "", false},
		{models.StatusDriverAssigned, EventFinish, "", false},
		{models.StatusInProgress, EventConfirm, "", false},
		{models.StatusInProgress, EventCancel, "", false},
		{models.StatusCompleted, EventConfirm, "", false},
		{models.StatusCompleted, EventFinish, "", false},
		{models.StatusCancelled, EventConfirm, "", false},
		{models.StatusCancelled, EventStart, "", false},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.ev)
		if tc.ok {
			if err != nil {
				t.Fatalf("%s + %s: unexpected error %v", tc.from, tc.ev, err)
			}
			if got != tc.to {
				t.Fatalf("%s + %s: expected %s, got %s", tc.from, tc.ev, tc.to, got)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%s + %s: expected rejection, got %s", tc.from, tc.ev, got)
		}
		if apperr.KindOf(err) != apperr.KindTransition {
			t.Fatalf("%s + %s: expected transition kind, got %v", tc.from, tc.ev, err)
		}
		if got != tc.from {
			t.Fatalf("%s + %s: rejected transition must keep state, got %s", tc.from, tc.ev, got)
		}
	}
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	for _, st := range []models.RideStatus{models.StatusCompleted, models.StatusCancelled} {
		if !st.Terminal() {
			t.Fatalf("%s should be terminal", st)
		}
		for _, ev := range []Event{EventConfirm, EventStart, EventFinish, EventCancel} {
			if _, err := Next(st, ev); err == nil {
				t.Fatalf("terminal state %s accepted %s", st, ev)
			}
		}
	}
}
