package querycache

import "time"

// Tier groups queries by how quickly their data goes stale.
type Tier int

const (
	// TierRealtime covers activity and collaborator feeds.
	TierRealtime Tier = iota
	// TierDynamic covers tasks, guests and budget lines.
	TierDynamic
	// TierStatic covers project details and vendor lists.
	TierStatic
	// TierDashboard covers aggregated stats.
	TierDashboard
)

func (t Tier) String() string {
	switch t {
	case TierRealtime:
		return "realtime"
	case TierDynamic:
		return "dynamic"
	case TierStatic:
		return "static"
	case TierDashboard:
		return "dashboard"
	}
	return "unknown"
}

// Policy is a tier's freshness and retention window. Fresh data is served
// without refetching; retained data may still be shown while refetching.
type Policy struct {
	Fresh  time.Duration
	Retain time.Duration
}

// DefaultPolicies are the tier windows.
var DefaultPolicies = map[Tier]Policy{
	TierRealtime:  {Fresh: 30 * time.Second, Retain: 2 * time.Minute},
	TierDynamic:   {Fresh: 2 * time.Minute, Retain: 5 * time.Minute},
	TierStatic:    {Fresh: 15 * time.Minute, Retain: 30 * time.Minute},
	TierDashboard: {Fresh: 5 * time.Minute, Retain: 10 * time.Minute},
}

const (
	// DefaultCleanupInterval is how often the sweep runs.
	DefaultCleanupInterval = 15 * time.Minute
	// DefaultMaxAge is the age past which the sweep evicts an entry.
	DefaultMaxAge = 30 * time.Minute
)
