package auth

// Secret wraps a credential string so it cannot leak through logging or
// serialization. fmt, %#v and JSON all print [REDACTED].
type Secret struct {
	value string
}

// NewSecret wraps value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Value returns the wrapped credential. Only call it when writing the value
// onto the wire.
func (s Secret) Value() string {
	return s.value
}

// IsEmpty reports whether no credential is wrapped.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

func (s Secret) String() string {
	return "[REDACTED]"
}

func (s Secret) GoString() string {
	return "auth.Secret{[REDACTED]}"
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}
