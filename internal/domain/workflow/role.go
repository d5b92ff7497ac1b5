package workflow

// Role identifies the capacity in which an actor invokes an action
type Role string

const (
	RoleCreator Role = "CREATOR"
	RoleTier1   Role = "TIER1"
	RoleTier2   Role = "TIER2"
	RoleTier3   Role = "TIER3"
)

var reviewTiers = map[Role]int{
	RoleTier1: 1,
	RoleTier2: 2,
	RoleTier3: 3,
}

// IsValid returns true if the role is one of the defined roles
func (r Role) IsValid() bool {
	return r == RoleCreator || reviewTiers[r] != 0
}

// ReviewTier returns the tier number for a reviewer role, or 0 for non-reviewers
func (r Role) ReviewTier() int {
	return reviewTiers[r]
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}
