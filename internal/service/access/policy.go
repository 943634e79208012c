package access

// Tier is the access level of a requester
type Tier int

const (
	TierUser Tier = iota
	TierAdmin
)

// ResultPolicy bounds how many results a request may return
type ResultPolicy struct {
	UserDefault  int
	AdminDefault int
	HardCap      int
}

// DefaultResultPolicy is 10 for users, 50 for admins, never above 200
var DefaultResultPolicy = ResultPolicy{UserDefault: 10, AdminDefault: 50, HardCap: 200}

// MaxResults clamps an explicit request to [1, HardCap] for every tier,
// otherwise returns the tier default.
func (p ResultPolicy) MaxResults(tier Tier, requested *int) int {
	if requested != nil {
		n := *requested
		if n < 1 {
			return 1
		}
		if n > p.HardCap {
			return p.HardCap
		}
		return n
	}
	if tier == TierAdmin {
		return p.AdminDefault
	}
	return p.UserDefault
}

// TierOf maps the admin flag to a tier
func TierOf(isAdmin bool) Tier {
	if isAdmin {
		return TierAdmin
	}
	return TierUser
}
