package domain

import (
	"time"

	"github.com/pkg/errors"
)

// EntryEvent drives the queue entry state machine.
type EntryEvent string

const (
	EventJoin       EntryEvent = "join"
	EventPromote    EntryEvent = "promote"
	EventAdmit      EntryEvent = "admit"
	EventParentBusy EntryEvent = "parent_busy"
	EventRequeue    EntryEvent = "requeue"
	EventComplete   EntryEvent = "complete"
	EventRemove     EntryEvent = "remove"
	EventLeave      EntryEvent = "leave"
)

// statusNew is the pseudo state of an entry that has not been stored yet.
const statusNew EntryStatus = ""

// Stamp names the timestamp a transition sets.
type Stamp int

const (
	StampNone Stamp = iota
	StampJoined
	StampNotified
	StampStarted
	StampCompleted
)

// Notice is the message kind the parent receives for a transition.
type Notice string

const (
	NoticeQueued       Notice = "queued"
	NoticeYourTurn     Notice = "your_turn"
	NoticeGettingClose Notice = "getting_close"
	NoticeParentBusy   Notice = "skipped_parent_busy"
	NoticeRequeued     Notice = "requeued_with_priority"
	NoticeThankYou     Notice = "thank_you"
	NoticeRemoved      Notice = "removed"
	NoticeLeft         Notice = "left_queue"
)

// Step is the outcome of a legal transition.
type Step struct {
	To     EntryStatus
	Stamp  Stamp
	Notice Notice
}

type transitionKey struct {
	from  EntryStatus
	event EntryEvent
}

var transitions = map[transitionKey]Step{
	// A join on an empty line is followed by admit or parent_busy in the
	// same unit of work, so no other reader sees the waiting state.
	{statusNew, EventJoin}: {To: StatusWaiting, Stamp: StampJoined, Notice: NoticeQueued},

	{StatusWaiting, EventPromote}: {To: StatusNext, Stamp: StampNotified, Notice: NoticeGettingClose},

	{StatusWaiting, EventAdmit}: {To: StatusCurrent, Stamp: StampStarted, Notice: NoticeYourTurn},
	{StatusNext, EventAdmit}:    {To: StatusCurrent, Stamp: StampStarted, Notice: NoticeYourTurn},
	{StatusSkipped, EventAdmit}: {To: StatusCurrent, Stamp: StampStarted, Notice: NoticeYourTurn},

	{StatusWaiting, EventParentBusy}: {To: StatusSkipped, Notice: NoticeParentBusy},
	{StatusNext, EventParentBusy}:    {To: StatusSkipped, Notice: NoticeParentBusy},

	{StatusSkipped, EventRequeue}: {To: StatusWaiting, Notice: NoticeRequeued},

	{StatusCurrent, EventComplete}: {To: StatusCompleted, Stamp: StampCompleted, Notice: NoticeThankYou},
	{StatusCurrent, EventRemove}:   {To: StatusCompleted, Stamp: StampCompleted, Notice: NoticeRemoved},

	{StatusWaiting, EventLeave}: {To: StatusCompleted, Stamp: StampCompleted, Notice: NoticeLeft},
	{StatusNext, EventLeave}:    {To: StatusCompleted, Stamp: StampCompleted, Notice: NoticeLeft},
	{StatusSkipped, EventLeave}: {To: StatusCompleted, Stamp: StampCompleted, Notice: NoticeLeft},
	{StatusCurrent, EventLeave}: {To: StatusCompleted, Stamp: StampCompleted, Notice: NoticeLeft},
}

// Transition looks up the step for an event fired in the given state.
func Transition(from EntryStatus, ev EntryEvent) (Step, error) {
	step, ok := transitions[transitionKey{from, ev}]
	if !ok {
		name := string(from)
		if from == statusNew {
			name = "new"
		}
		return Step{}, errors.Wrapf(ErrInvalidTransition, "%s on %s", ev, name)
	}
	return step, nil
}

// Apply fires ev on the entry, updating status and the stamped timestamp.
func (e *QueueEntry) Apply(ev EntryEvent, now time.Time) (Step, error) {
	step, err := Transition(e.Status, ev)
	if err != nil {
		return Step{}, errors.WithMessagef(err, "entry %s", e.ID)
	}

	e.Status = step.To
	t := now
	switch step.Stamp {
	case StampJoined:
		e.JoinedAt = t
	case StampNotified:
		e.NotifiedAt = &t
	case StampStarted:
		e.StartedAt = &t
	case StampCompleted:
		e.CompletedAt = &t
	}
	if ev == EventRemove {
		e.Removed = true
	}
	return step, nil
}
