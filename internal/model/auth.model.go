package model

// AuthContext identifies the caller of a user or admin operation.
type AuthContext struct {
	UserID  string
	IsAdmin bool
}

func (a AuthContext) Authenticated() bool { return a.UserID != "" }
