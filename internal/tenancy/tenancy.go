// Package tenancy evaluates whether a principal may act on a resource.
// It is a pure predicate over the resource's owning event; it holds no
// state of its own and is consulted, not bypassed, at every trust boundary.
package tenancy

import (
	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

// Action names an operation crossing a trust boundary.
type Action string

const (
	ActionSearch        Action = "search"
	ActionReadMatches   Action = "read_matches"
	ActionReadAnalytics Action = "read_analytics"
	ActionIngest        Action = "ingest"
	ActionRecordMatch   Action = "record_match"
	ActionManageEvent   Action = "manage_event"
)

// Principal identifies the caller. Exactly three kinds exist: an event
// owner, an anonymous attendee holding an access code, and the trusted
// service principal used by internal jobs.
type Principal interface {
	isPrincipal()
}

// Owner is an organizer identified by a user id. Owners may touch only
// events whose owner matches that id.
type Owner struct {
	UserID string
}

// Anonymous is an attendee who joined one event by presenting its access
// code. It is never identified by login and can see nothing outside that
// single event.
type Anonymous struct {
	EventID uuid.UUID
}

// ServicePrincipal is the trusted internal caller (ingestion pipeline,
// aggregate refresh jobs). It bypasses per-row ownership checks.
type ServicePrincipal struct{}

func (Owner) isPrincipal()            {}
func (Anonymous) isPrincipal()        {}
func (ServicePrincipal) isPrincipal() {}

// Resource scopes an authorization check to one event.
type Resource struct {
	EventID uuid.UUID
	OwnerID string
}

// anonymousActions are the only operations an attendee may perform on the
// event it joined.
var anonymousActions = map[Action]bool{
	ActionSearch:      true,
	ActionReadMatches: true,
}

// Authorize returns nil when the principal may perform the action on the
// resource, facestore.ErrUnauthorized otherwise. Denials carry no detail
// about other tenants' data.
func Authorize(p Principal, action Action, res Resource) error {
	switch pr := p.(type) {
	case ServicePrincipal:
		return nil
	case Owner:
		if pr.UserID != "" && pr.UserID == res.OwnerID {
			return nil
		}
		return facestore.ErrUnauthorized
	case Anonymous:
		if anonymousActions[action] && pr.EventID != uuid.Nil && pr.EventID == res.EventID {
			return nil
		}
		return facestore.ErrUnauthorized
	default:
		return facestore.ErrUnauthorized
	}
}
