package types

// EffectiveIdentity is the caller as seen by a single request. Global is the
// role stored on the user row; ProjectRole is filled in by the project gate
// once the membership for the routed project has been resolved.
type EffectiveIdentity struct {
	UserID      uint   `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Global      Role   `json:"global_role"`
	ProjectID   uint   `json:"project_id,omitempty"`
	ProjectRole Role   `json:"project_role,omitempty"`
}

// Role returns the role downstream handlers should act on.
func (i *EffectiveIdentity) Role() Role {
	if i.ProjectRole != "" {
		return i.ProjectRole
	}
	return i.Global
}

func (i *EffectiveIdentity) IsGlobalAdmin() bool {
	return i.Global == RoleAdmin
}
