package movebank

import (
	"errors"
	"testing"
)

func TestResolveCredentials_StaticWins(t *testing.T) {
	t.Setenv(EnvUsername, "env_user")
	t.Setenv(EnvPassword, "env_pass")

	creds, err := ResolveCredentials(
		StaticCredentials{Username: "flag_user", Password: "flag_pass"},
		EnvSource(),
	)
	if err != nil {
		t.Fatalf("ResolveCredentials: %v", err)
	}
	if creds.Username != "flag_user" || creds.Password != "flag_pass" {
		t.Errorf("creds = %+v, want static pair", creds)
	}
}

func TestResolveCredentials_FallsBackToEnv(t *testing.T) {
	t.Setenv(EnvUsername, "env_user")
	t.Setenv(EnvPassword, "env_pass")

	creds, err := ResolveCredentials(
		StaticCredentials{Username: "flag_user"}, // password missing: not fully populated
		EnvSource(),
	)
	if err != nil {
		t.Fatalf("ResolveCredentials: %v", err)
	}
	if creds.Username != "env_user" || creds.Password != "env_pass" {
		t.Errorf("creds = %+v, want env pair", creds)
	}
}

func TestResolveCredentials_Missing(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")

	_, err := ResolveCredentials(StaticCredentials{}, EnvSource())
	if !errors.Is(err, ErrCredentialsMissing) {
		t.Errorf("err = %v, want ErrCredentialsMissing", err)
	}
}
