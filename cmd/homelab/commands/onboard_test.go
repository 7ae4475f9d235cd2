package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/homelab/internal/config"
	"github.com/systmms/homelab/internal/lldap"
	"github.com/systmms/homelab/internal/logging"
	"github.com/systmms/homelab/internal/metrics"
	"github.com/systmms/homelab/internal/onboarding"
	"github.com/systmms/homelab/tests/testutil"
)

type fakeOnboarder struct {
	settings *config.OnboardingConfig
	requests []onboarding.Request
	err      error
}

func (f *fakeOnboarder) Onboard(_ context.Context, req onboarding.Request) (*lldap.User, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &lldap.User{ID: req.Username, Email: req.Email}, nil
}

func setOnboardingEnv(t *testing.T) {
	t.Helper()

	for key, value := range map[string]string{
		"LLDAP_URL":            "http://lldap.lan:17170/",
		"LLDAP_ADMIN_USER":     "admin",
		"LLDAP_ADMIN_PASSWORD": "hunter22",
		"SMTP_HOST":            "mail.lan",
		"SMTP_PORT":            "587",
		"SMTP_USERNAME":        "",
		"SMTP_PASSWORD":        "",
		"EMAIL_FROM":           "homelab@example.com",
		"AUTHELIA_URL":         "https://auth.example.com",
	} {
		t.Setenv(key, value)
	}
}

func withFakeOnboarder(env *testEnv) *fakeOnboarder {
	fake := &fakeOnboarder{}
	env.rt.NewOnboarder = func(cfg *config.OnboardingConfig, _ *logging.Logger, _ *metrics.Recorder) Onboarder {
		fake.settings = cfg
		return fake
	}
	return fake
}

var onboardArgs = []string{
	"--username", "jdoe",
	"--email", "jdoe@example.com",
	"--first-name", "Jane",
	"--last-name", "Doe",
}

func TestOnboardUserCommand(t *testing.T) {
	setOnboardingEnv(t)
	env := newTestEnv(t, testutil.NewTestConfig(t).Write())
	fake := withFakeOnboarder(env)

	require.NoError(t, execute(t, NewOnboardUserCommand(env.cfg, env.rt), onboardArgs...))

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "jdoe", req.Username)
	assert.Equal(t, "jdoe@example.com", req.Email)
	assert.Equal(t, "Jane Doe", req.DisplayName)

	require.NotNil(t, fake.settings)
	assert.Equal(t, "http://lldap.lan:17170", fake.settings.LLDAPURL)
	assert.Equal(t, 587, fake.settings.SMTP.Port)

	assert.Contains(t, env.out.String(), "Done! The user should receive an email with instructions.")
}

func TestOnboardUserCommand_DisplayName(t *testing.T) {
	setOnboardingEnv(t)
	env := newTestEnv(t, testutil.NewTestConfig(t).Write())
	fake := withFakeOnboarder(env)

	args := append(append([]string{}, onboardArgs...), "--display-name", "JD")
	require.NoError(t, execute(t, NewOnboardUserCommand(env.cfg, env.rt), args...))
	assert.Equal(t, "JD", fake.requests[0].DisplayName)
}

func TestOnboardUserCommand_InvalidInput(t *testing.T) {
	setOnboardingEnv(t)
	env := newTestEnv(t, testutil.NewTestConfig(t).Write())
	fake := withFakeOnboarder(env)

	err := execute(t, NewOnboardUserCommand(env.cfg, env.rt),
		"--username", "jdoe", "--email", "not-an-email", "--first-name", "Jane", "--last-name", "Doe")
	testutil.AssertErrorContains(t, err, "Invalid user details")
	assert.Nil(t, fake.settings)
}

func TestOnboardUserCommand_MissingFlag(t *testing.T) {
	setOnboardingEnv(t)
	env := newTestEnv(t, testutil.NewTestConfig(t).Write())
	withFakeOnboarder(env)

	err := execute(t, NewOnboardUserCommand(env.cfg, env.rt), "--username", "jdoe")
	testutil.AssertErrorContains(t, err, `required flag(s)`)
	testutil.AssertErrorContains(t, err, `"email"`)
}

func TestOnboardUserCommand_MissingEnvironment(t *testing.T) {
	setOnboardingEnv(t)
	t.Setenv("LLDAP_URL", "")
	t.Setenv("AUTHELIA_URL", "")

	env := newTestEnv(t, testutil.NewTestConfig(t).Write())
	fake := withFakeOnboarder(env)

	err := execute(t, NewOnboardUserCommand(env.cfg, env.rt), onboardArgs...)
	testutil.AssertErrorContains(t, err, "missing required environment variables: LLDAP_URL, AUTHELIA_URL")
	assert.Empty(t, fake.requests)
}

func TestOnboardUserCommand_Failure(t *testing.T) {
	setOnboardingEnv(t)
	env := newTestEnv(t, testutil.NewTestConfig(t).Write())
	fake := withFakeOnboarder(env)
	fake.err = errors.New("lldap error during authenticate")

	err := execute(t, NewOnboardUserCommand(env.cfg, env.rt), onboardArgs...)
	assert.EqualError(t, err, "lldap error during authenticate")
	assert.NotContains(t, env.out.String(), "Done!")
}
