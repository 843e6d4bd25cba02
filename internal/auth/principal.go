package auth

// Principal is a signed-in user with capabilities resolved at login.
type Principal struct {
	ID    string
	Name  string
	Roles []Role

	caps map[Capability]bool
}

func NewPrincipal(id, name string, roles []Role) *Principal {
	return &Principal{
		ID:    id,
		Name:  name,
		Roles: roles,
		caps:  Resolve(roles),
	}
}

func (p *Principal) UserID() string {
	if p == nil {
		return ""
	}
	return p.ID
}

func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	return p.Name
}

// HasPermission is false for a nil principal.
func (p *Principal) HasPermission(c Capability) bool {
	if p == nil {
		return false
	}
	return p.caps[c]
}
