package querycache

import "strings"

// Key identifies a cached query. Keys are hierarchical,
// [entity, projectID, subresource], so a shorter key acts as a prefix for
// invalidation.
type Key []string

// String joins the segments; it is the de-duplication identity.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether prefix matches the leading segments of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Tier returns the staleness tier a key belongs to.
func (k Key) Tier() Tier {
	if len(k) == 0 {
		return TierStatic
	}
	if k[0] == "dashboard" {
		return TierDashboard
	}
	switch k[len(k)-1] {
	case "activities", "collaborators":
		return TierRealtime
	case "tasks", "guests", "budget":
		return TierDynamic
	default:
		return TierStatic
	}
}

// Keys builds every key the client uses so call sites agree on shape.
var Keys keyFactory

type keyFactory struct{}

func (keyFactory) Projects() Key { return Key{"projects"} }
func (keyFactory) Project(id string) Key { return Key{"project", id} }
func (keyFactory) Tasks(id string) Key { return Key{"project", id, "tasks"} }
func (keyFactory) Guests(id string) Key { return Key{"project", id, "guests"} }
func (keyFactory) Budget(id string) Key { return Key{"project", id, "budget"} }
func (keyFactory) Vendors(id string) Key { return Key{"project", id, "vendors"} }
func (keyFactory) Activities(id string) Key { return Key{"project", id, "activities"} }
func (keyFactory) Collaborators(id string) Key { return Key{"project", id, "collaborators"} }
func (keyFactory) Dashboard(id string) Key { return Key{"dashboard", id, "stats"} }
func (keyFactory) DashboardScope(id string) Key { return Key{"dashboard", id} }
func (keyFactory) ProjectScope(id string) Key { return Key{"project", id} }

// ForEntity maps an entity type ("task", "budget_item", ...) to the list
// key holding it. ok is false for unknown types.
func (f keyFactory) ForEntity(projectID, entityType string) (Key, bool) {
	switch strings.ToLower(entityType) {
	case "task", "tasks":
		return f.Tasks(projectID), true
	case "guest", "guests":
		return f.Guests(projectID), true
	case "budget", "budget_item", "budgetitem":
		return f.Budget(projectID), true
	case "vendor", "vendors":
		return f.Vendors(projectID), true
	case "project":
		return f.Project(projectID), true
	}
	return nil, false
}
