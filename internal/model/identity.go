package model

// Identity is the signed-in session user.
type Identity struct {
	UserID   ID   `json:"User_ID"`
	UserName Text `json:"User_Name,omitempty"`
	UserType Role `json:"User_Type,omitempty"`
}

// IdentityOf returns the session identity for u.
func IdentityOf(u User) Identity {
	return Identity{UserID: u.UserID, UserName: u.UserName, UserType: u.UserType}
}

// IsAdmin reports whether the identity has administrator rights.
func (i Identity) IsAdmin() bool {
	return i.UserType == RoleAdmin
}
