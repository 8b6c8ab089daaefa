package auth

// MethodKind names the mechanism behind the current authenticated state.
type MethodKind int

const (
	MethodNone MethodKind = iota
	MethodOAuth
	MethodSession
)

func (k MethodKind) String() string {
	switch k {
	case MethodOAuth:
		return "oauth"
	case MethodSession:
		return "session"
	default:
		return "none"
	}
}

// Method is the authenticated state together with the credential that
// backs it. It is one of NoMethod, OAuthMethod or SessionMethod.
type Method interface {
	Kind() MethodKind
}

// NoMethod means nobody is authenticated.
type NoMethod struct{}

func (NoMethod) Kind() MethodKind { return MethodNone }

// OAuthMethod carries the bearer token in use.
type OAuthMethod struct {
	Token Secret
}

func (OAuthMethod) Kind() MethodKind { return MethodOAuth }

// SessionMethod carries the CSRF token of the active session.
type SessionMethod struct {
	CSRF Secret
}

func (SessionMethod) Kind() MethodKind { return MethodSession }
