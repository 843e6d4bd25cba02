package auth

// Capability is a named permission checked by the story store.
type Capability string

const (
	CapWrite       Capability = "write"
	CapPublish     Capability = "publish"
	CapModerate    Capability = "moderate"
	CapAdmin       Capability = "admin"
	CapReadPremium Capability = "read_premium"
	CapEarnMoney   Capability = "earn_money"
)

type Role string

const (
	RoleReader    Role = "reader"
	RoleWriter    Role = "writer"
	RolePremium   Role = "premium"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// capabilityRoles lists, per capability, the roles that grant it.
var capabilityRoles = map[Capability][]Role{
	CapWrite:       {RoleWriter, RoleAdmin},
	CapPublish:     {RoleWriter, RoleAdmin},
	CapModerate:    {RoleModerator, RoleAdmin},
	CapAdmin:       {RoleAdmin},
	CapReadPremium: {RolePremium, RoleAdmin},
	CapEarnMoney:   {RoleWriter, RoleAdmin},
}

// Resolve flattens a role list into the set of capabilities it grants.
// Unknown roles grant nothing.
func Resolve(roles []Role) map[Capability]bool {
	granted := make(map[Role]bool, len(roles))
	for _, r := range roles {
		granted[r] = true
	}

	caps := make(map[Capability]bool)
	for capability, allowed := range capabilityRoles {
		for _, r := range allowed {
			if granted[r] {
				caps[capability] = true
				break
			}
		}
	}
	return caps
}

func (r Role) Valid() bool {
	switch r {
	case RoleReader, RoleWriter, RolePremium, RoleModerator, RoleAdmin:
		return true
	}
	return false
}
