package lifecycle

import "strings"

// AuthorizationPolicy is the administrator allow-list, passed in at
// construction so tests can substitute policies. Matching is
// case-insensitive.
type AuthorizationPolicy struct {
	admins       map[string]struct{}
	defaultAdmin string
}

func NewAuthorizationPolicy(admins []string, defaultAdmin string) AuthorizationPolicy {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if trimmed := strings.ToLower(strings.TrimSpace(a)); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return AuthorizationPolicy{admins: set, defaultAdmin: strings.TrimSpace(defaultAdmin)}
}

func (p AuthorizationPolicy) IsAdmin(address string) bool {
	_, ok := p.admins[strings.ToLower(strings.TrimSpace(address))]
	return ok
}

// DefaultAdmin is the fallback lender address for repayments on loans whose
// approving administrator was never recorded.
func (p AuthorizationPolicy) DefaultAdmin() string {
	return p.defaultAdmin
}
