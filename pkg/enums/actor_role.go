package enums

// ActorRole is the role claim carried by an authenticated caller.
type ActorRole string

const (
	ActorRoleStaff  ActorRole = "staff"
	ActorRoleOwner  ActorRole = "owner"
	ActorRoleSystem ActorRole = "system"
)

var actorRoles = set[ActorRole]{ActorRoleStaff, ActorRoleOwner, ActorRoleSystem}

func (r ActorRole) String() string {
	return string(r)
}

func (r ActorRole) IsValid() bool {
	return actorRoles.has(r)
}

// CanManageCatalog reports whether the role may edit rewards and gift settings.
func (r ActorRole) CanManageCatalog() bool {
	return r == ActorRoleOwner || r == ActorRoleSystem
}

func ParseActorRole(value string) (ActorRole, error) {
	return actorRoles.parse("actor role", value)
}
