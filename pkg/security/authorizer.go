package security

// Authorizer decides which users may answer permission requests. An
// empty allow list admits everyone.
type Authorizer struct {
	allowed map[string]struct{}
}

func NewAuthorizer(users []string) *Authorizer {
	a := &Authorizer{allowed: make(map[string]struct{}, len(users))}
	for _, u := range users {
		a.allowed[u] = struct{}{}
	}
	return a
}

func (a *Authorizer) Allowed(userID string) bool {
	if a == nil || len(a.allowed) == 0 {
		return true
	}
	_, ok := a.allowed[userID]
	return ok
}

// Restricted reports whether an allow list is configured.
func (a *Authorizer) Restricted() bool {
	return a != nil && len(a.allowed) > 0
}
