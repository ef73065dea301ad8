package auth

// Ownable is a resource with a single owning user: a listing's owner or a
// review's author.
type Ownable interface {
	OwnerID() int64
}

// IsOwner reports whether u owns res. A nil user owns nothing.
func IsOwner(res Ownable, u *User) bool {
	if u == nil || res == nil {
		return false
	}
	return res.OwnerID() == u.ID
}
