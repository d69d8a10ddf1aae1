package movebank

import "os"

// Environment variables checked by EnvSource. The names match what the
// Movebank tooling ecosystem conventionally uses.
const (
	EnvUsername = "mbus"
	EnvPassword = "mbpw"
)

type Credentials struct {
	Username string
	Password string
}

// CredentialSource yields credentials from one configuration channel.
// ok is false unless both fields are non-empty.
type CredentialSource interface {
	Credentials() (creds Credentials, ok bool)
}

// StaticCredentials is an explicit username/password pair, typically
// from flags or a config struct.
type StaticCredentials struct {
	Username string
	Password string
}

func (s StaticCredentials) Credentials() (Credentials, bool) {
	c := Credentials{Username: s.Username, Password: s.Password}
	return c, c.Username != "" && c.Password != ""
}

// EnvCredentials reads a username/password pair from two environment
// variables.
type EnvCredentials struct {
	UsernameVar string
	PasswordVar string
}

func (e EnvCredentials) Credentials() (Credentials, bool) {
	c := Credentials{
		Username: os.Getenv(e.UsernameVar),
		Password: os.Getenv(e.PasswordVar),
	}
	return c, c.Username != "" && c.Password != ""
}

// EnvSource is the standard environment lookup (mbus/mbpw).
func EnvSource() EnvCredentials {
	return EnvCredentials{UsernameVar: EnvUsername, PasswordVar: EnvPassword}
}

// ResolveCredentials tries each source in order and returns the first
// fully-populated pair. There is no interactive fallback: if nothing is
// configured the caller gets ErrCredentialsMissing.
func ResolveCredentials(sources ...CredentialSource) (Credentials, error) {
	for _, src := range sources {
		if creds, ok := src.Credentials(); ok {
			return creds, nil
		}
	}
	return Credentials{}, ErrCredentialsMissing
}
