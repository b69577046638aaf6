package session

// Storage keys. Each field of a [Session] is a discrete entry under these names.
const (
	KeyToken        = "token"
	KeyUsername     = "username"
	KeyEmail        = "userEmail"
	KeyProfileImage = "userProfileImage"
	KeyFullName     = "userFullName"
)

// Keys lists every key a [Store] writes, in a stable order.
var Keys = []string{KeyToken, KeyUsername, KeyEmail, KeyProfileImage, KeyFullName}

// Session is the persisted identity of one storefront client.
//
// Role is intentionally absent: it is derived from Token on every load.
type Session struct {
	Token    string
	Username string

	// Optional profile fields, set by federated sign-in.
	Email        string
	ProfileImage string
	FullName     string
}

// Authenticated reports whether both credential fields are present.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.Username != ""
}

func (s Session) entries() map[string]string {
	return map[string]string{
		KeyToken:        s.Token,
		KeyUsername:     s.Username,
		KeyEmail:        s.Email,
		KeyProfileImage: s.ProfileImage,
		KeyFullName:     s.FullName,
	}
}

func fromEntries(entries map[string]string) Session {
	return Session{
		Token:        entries[KeyToken],
		Username:     entries[KeyUsername],
		Email:        entries[KeyEmail],
		ProfileImage: entries[KeyProfileImage],
		FullName:     entries[KeyFullName],
	}
}
