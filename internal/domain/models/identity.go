package models

// IdentityKind classifies a caller as an anonymous guest or an authenticated member.
type IdentityKind string

const (
	IdentityGuest  IdentityKind = "guest"
	IdentityMember IdentityKind = "member"
)

// Plan tiers known to the plan table.
const (
	PlanGuest = "guest"
	PlanFree  = "free"
	PlanPro   = "pro"
)

// Identity is resolved once per request and is immutable within that scope.
//
// Members carry a stable external ID. Guests have no durable ID; Session names
// the guest's local storage namespace and quota bucket instead.
type Identity struct {
	Kind    IdentityKind `json:"kind"`
	ID      string       `json:"id,omitempty"`
	Session string       `json:"session,omitempty"`
	Plan    string       `json:"plan"`
}

// Guest returns a guest identity bound to a local session namespace.
func Guest(session string) Identity {
	return Identity{Kind: IdentityGuest, Session: session, Plan: PlanGuest}
}

// Member returns a member identity. An empty plan defaults to the free tier.
func Member(id, plan string) Identity {
	if plan == "" {
		plan = PlanFree
	}
	return Identity{Kind: IdentityMember, ID: id, Plan: plan}
}

func (i Identity) IsGuest() bool  { return i.Kind == IdentityGuest }
func (i Identity) IsMember() bool { return i.Kind == IdentityMember }

// Key identifies the identity's storage and quota bucket.
func (i Identity) Key() string {
	if i.IsMember() {
		return "member:" + i.ID
	}
	return "guest:" + i.Session
}
