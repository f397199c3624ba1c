package domain

// Status is the lifecycle state of a service request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusMatched    Status = "matched"
	StatusInProgress Status = "in_progress"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Role of an authenticated principal.
type Role string

const (
	RoleContractor Role = "contractor"
	RoleVendor     Role = "vendor"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleContractor, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// updatableStatuses are the values accepted by the generic status update.
// delivered is reached only through Deliver.
var updatableStatuses = map[Status]bool{
	StatusPending:    true,
	StatusMatched:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

// ParseUpdatableStatus reports whether s is accepted by the generic status update.
func ParseUpdatableStatus(s string) (Status, bool) {
	st := Status(s)
	return st, updatableStatuses[st]
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is any known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusMatched, StatusInProgress, StatusDelivered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// TransitionPolicy maps a current status and the acting party's role to the
// statuses that party may move the request to.
type TransitionPolicy map[Status]map[Role][]Status

func symmetric(next ...Status) map[Role][]Status {
	return map[Role][]Status{
		RoleContractor: next,
		RoleVendor:     next,
	}
}

// DefaultPolicy lets either party drive every edge of the lifecycle graph.
func DefaultPolicy() TransitionPolicy {
	return TransitionPolicy{
		StatusPending:    symmetric(StatusMatched, StatusCancelled),
		StatusMatched:    symmetric(StatusInProgress, StatusCancelled),
		StatusInProgress: symmetric(StatusCompleted, StatusCancelled),
		StatusDelivered:  symmetric(StatusCompleted),
		StatusCompleted:  {},
		StatusCancelled:  {},
	}
}

// Allows reports whether role may move a request from `from` to `to`.
func (p TransitionPolicy) Allows(from, to Status, role Role) bool {
	for _, s := range p[from][role] {
		if s == to {
			return true
		}
	}
	return false
}

// IsLifecycleEdge reports whether from -> to is an edge of the lifecycle graph,
// including the delivery edges driven by Deliver.
func IsLifecycleEdge(from, to Status) bool {
	switch {
	case from == StatusInProgress && to == StatusDelivered:
		return true
	case from == StatusDelivered && to == StatusDelivered:
		return true
	}
	return DefaultPolicy().Allows(from, to, RoleContractor)
}
