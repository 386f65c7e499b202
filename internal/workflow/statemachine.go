package workflow

import (
	"strings"

	"github.com/onepwr/procurement-api/internal/domain"
)

// actorClass identifies who is acting on a PR relative to that PR
type actorClass int

const (
	actorRequestor actorClass = 1 << iota
	actorProcurement
	actorCurrentApprover
)

// edge describes one permitted transition and its constraints
type edge struct {
	actors        actorClass
	notesRequired bool
	// redesignate re-numbers the record from PR to PO on this edge
	redesignate bool
}

// transitions is the full permitted-transition table. A missing entry means
// the transition is forbidden regardless of actor. CANCELED is handled
// separately because its actor constraint depends on the source status.
var transitions = map[domain.PRStatus]map[domain.PRStatus]edge{
	domain.PRStatusDraft: {
		domain.PRStatusSubmitted: {actors: actorRequestor | actorProcurement},
	},
	domain.PRStatusSubmitted: {
		domain.PRStatusInQueue:          {actors: actorProcurement},
		domain.PRStatusRejected:         {actors: actorProcurement, notesRequired: true},
		domain.PRStatusRevisionRequired: {actors: actorProcurement | actorCurrentApprover, notesRequired: true},
	},
	domain.PRStatusResubmitted: {
		domain.PRStatusInQueue:          {actors: actorProcurement},
		domain.PRStatusRejected:         {actors: actorProcurement, notesRequired: true},
		domain.PRStatusRevisionRequired: {actors: actorProcurement | actorCurrentApprover, notesRequired: true},
	},
	domain.PRStatusInQueue: {
		domain.PRStatusRejected:         {actors: actorProcurement, notesRequired: true},
		domain.PRStatusRevisionRequired: {actors: actorProcurement | actorCurrentApprover, notesRequired: true},
		domain.PRStatusPendingApproval:  {actors: actorProcurement, redesignate: true},
	},
	domain.PRStatusRevisionRequired: {
		domain.PRStatusResubmitted:      {actors: actorRequestor},
		domain.PRStatusRejected:         {actors: actorProcurement, notesRequired: true},
		domain.PRStatusRevisionRequired: {actors: actorProcurement | actorCurrentApprover, notesRequired: true},
		domain.PRStatusPendingApproval:  {actors: actorProcurement, redesignate: true},
	},
	domain.PRStatusPendingApproval: {
		domain.PRStatusApproved:         {actors: actorCurrentApprover},
		domain.PRStatusInQueue:          {actors: actorCurrentApprover | actorProcurement},
		domain.PRStatusRevisionRequired: {actors: actorProcurement | actorCurrentApprover, notesRequired: true},
	},
	domain.PRStatusApproved: {
		domain.PRStatusOrdered: {actors: actorProcurement},
	},
	domain.PRStatusOrdered: {
		domain.PRStatusPartiallyReceived: {actors: actorProcurement},
		domain.PRStatusCompleted:         {actors: actorProcurement},
	},
	domain.PRStatusPartiallyReceived: {
		domain.PRStatusCompleted: {actors: actorProcurement},
	},
}

// requestorCancelable lists the statuses from which the requestor (rather
// than procurement) may cancel their own PR
var requestorCancelable = map[domain.PRStatus]bool{
	domain.PRStatusSubmitted:        true,
	domain.PRStatusResubmitted:      true,
	domain.PRStatusInQueue:          true,
	domain.PRStatusRevisionRequired: true,
}

func classify(pr *domain.PurchaseRequest, actor *domain.User) actorClass {
	var c actorClass
	if actor.ID == pr.RequestorID {
		c |= actorRequestor
	}
	if actor.PermissionLevel.IsProcurement() {
		c |= actorProcurement
	}
	if pr.IsAssignedApprover(actor.ID) {
		c |= actorCurrentApprover
	}
	return c
}

// CanTransition reports whether any actor could move a PR between the two
// statuses, ignoring actor and notes constraints
func CanTransition(from, to domain.PRStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == domain.PRStatusCanceled {
		return from.IsOpen()
	}
	_, ok := transitions[from][to]
	return ok
}

// AllowedTargets returns the statuses reachable from the given status
func AllowedTargets(from domain.PRStatus) []domain.PRStatus {
	if from.IsTerminal() {
		return nil
	}
	var targets []domain.PRStatus
	for to := range transitions[from] {
		targets = append(targets, to)
	}
	if from.IsOpen() {
		targets = append(targets, domain.PRStatusCanceled)
	}
	return targets
}

// RedesignatesAsPO reports whether the edge re-numbers the record from PR to
// PO (entering the approval stage)
func RedesignatesAsPO(from, to domain.PRStatus) bool {
	e, ok := transitions[from][to]
	return ok && e.redesignate
}

// RequiresApprovalValidation reports whether the target status must pass the
// approval validator before the transition is applied
func RequiresApprovalValidation(to domain.PRStatus) bool {
	return to == domain.PRStatusPendingApproval || to == domain.PRStatusApproved
}

// NotesRequired reports whether a non-empty notes string is mandatory for
// the target status
func NotesRequired(to domain.PRStatus) bool {
	return to == domain.PRStatusRejected || to == domain.PRStatusRevisionRequired
}

// Guard checks a requested transition against the table: target validity,
// terminal-state immutability, edge existence, actor authorization and the
// notes requirement. It returns a TransitionError before any state is
// mutated; the caller applies the transition only on a nil return.
func Guard(pr *domain.PurchaseRequest, actor *domain.User, to domain.PRStatus, notes string) error {
	from := pr.Status

	if !to.IsValid() {
		return &TransitionError{From: from, To: to, Reason: "unknown target status"}
	}
	if from.IsTerminal() {
		return &TransitionError{From: from, To: to, Reason: "status is terminal"}
	}
	if NotesRequired(to) && strings.TrimSpace(notes) == "" {
		return &TransitionError{From: from, To: to, Reason: "notes required"}
	}

	c := classify(pr, actor)

	if to == domain.PRStatusCanceled {
		if !from.IsOpen() {
			return &TransitionError{From: from, To: to, Reason: "status is terminal"}
		}
		if c&actorProcurement != 0 {
			return nil
		}
		if c&actorRequestor != 0 && requestorCancelable[from] {
			return nil
		}
		if c&actorRequestor != 0 {
			return &TransitionError{From: from, To: to, Reason: "requestor may only cancel before approval begins"}
		}
		return &TransitionError{From: from, To: to, Reason: "actor not permitted to cancel"}
	}

	e, ok := transitions[from][to]
	if !ok {
		return &TransitionError{From: from, To: to, Reason: "transition not permitted"}
	}
	if c&e.actors == 0 {
		return &TransitionError{From: from, To: to, Reason: "actor not permitted for this transition"}
	}
	return nil
}

// RedesignateNumber substitutes the PR prefix with PO, marking the record as
// a purchase order. Already re-designated numbers are returned unchanged.
func RedesignateNumber(number string) string {
	if strings.HasPrefix(number, "PR-") {
		return "PO-" + strings.TrimPrefix(number, "PR-")
	}
	return number
}
