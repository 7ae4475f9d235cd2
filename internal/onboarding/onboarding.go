// Package onboarding creates lldap accounts and emails the new user how to
// set a password.
package onboarding

import (
	"context"
	"errors"
	"io"
	"net/mail"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/systmms/homelab/internal/config"
	dserrors "github.com/systmms/homelab/internal/errors"
	"github.com/systmms/homelab/internal/lldap"
	"github.com/systmms/homelab/internal/logging"
	"github.com/systmms/homelab/internal/metrics"
)

// Stage names, as recorded in metrics.
const (
	StageValidate = "validate"
	StageLogin    = "login"
	StageCreate   = "create_user"
	StageEmail    = "send_email"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Request describes the account to create.
type Request struct {
	Username    string
	Email       string
	FirstName   string
	LastName    string
	DisplayName string
}

// Validate checks the request and fills in DisplayName.
func (r *Request) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.DisplayName = strings.TrimSpace(r.DisplayName)

	err := validation.ValidateStruct(r,
		validation.Field(&r.Username,
			validation.Required,
			validation.Length(1, 64),
			validation.Match(usernamePattern).Error("must be lowercase letters, digits, '.', '_' or '-'"),
		),
		validation.Field(&r.Email, validation.Required, validation.By(isEmail)),
		validation.Field(&r.FirstName, validation.Required),
		validation.Field(&r.LastName, validation.Required),
	)
	if err != nil {
		return dserrors.UserError{
			Message:    "Invalid user details",
			Details:    err.Error(),
			Suggestion: "Check --username, --email, --first-name and --last-name",
			Err:        err,
		}
	}

	if r.DisplayName == "" {
		r.DisplayName = r.FirstName + " " + r.LastName
	}
	return nil
}

func isEmail(value interface{}) error {
	s, _ := value.(string)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return errors.New("must be a valid email address")
	}
	return nil
}

// Directory is the user store accounts are created in.
type Directory interface {
	Login(ctx context.Context, username, password string) error
	CreateUser(ctx context.Context, input lldap.CreateUserInput) (*lldap.User, error)
}

// WelcomeSender delivers the onboarding email.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, to string, data WelcomeData) error
}

// Service runs the onboarding steps.
type Service struct {
	directory Directory
	mailer    WelcomeSender
	adminUser string
	adminPass string
	logger    *logging.Logger
	metrics   *metrics.Recorder
}

// Options holds the collaborators of a Service
type Options struct {
	Directory     Directory
	Mailer        WelcomeSender
	AdminUser     string
	AdminPassword string
	Logger        *logging.Logger
	Metrics       *metrics.Recorder
}

// NewService creates a Service. Logger and Metrics default when nil.
func NewService(opts Options) *Service {
	s := &Service{
		directory: opts.Directory,
		mailer:    opts.Mailer,
		adminUser: opts.AdminUser,
		adminPass: opts.AdminPassword,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if s.logger == nil {
		s.logger = logging.NewWithWriter(io.Discard, false, true)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewRecorder("onboard-user")
	}
	return s
}

// NewServiceFromConfig wires the lldap client and SMTP mailer from cfg.
func NewServiceFromConfig(cfg *config.OnboardingConfig, logger *logging.Logger, rec *metrics.Recorder) *Service {
	return NewService(Options{
		Directory:     lldap.NewClient(cfg.LLDAPURL),
		Mailer:        NewMailer(cfg),
		AdminUser:     cfg.LLDAPAdminUser,
		AdminPassword: cfg.LLDAPAdminPassword,
		Logger:        logger,
		Metrics:       rec,
	})
}

// Onboard validates req, creates the user and sends the welcome email.
// The user is not removed again when the email fails.
func (s *Service) Onboard(ctx context.Context, req Request) (*lldap.User, error) {
	if err := s.metrics.Stage(StageValidate, req.Validate); err != nil {
		return nil, err
	}

	s.logger.Info("Creating user %s (%s)...", req.Username, req.Email)

	if err := s.metrics.Stage(StageLogin, func() error {
		return s.directory.Login(ctx, s.adminUser, s.adminPass)
	}); err != nil {
		return nil, dserrors.BackendError("lldap", "authenticate", err)
	}

	var user *lldap.User
	if err := s.metrics.Stage(StageCreate, func() error {
		var err error
		user, err = s.directory.CreateUser(ctx, lldap.CreateUserInput{
			ID:          req.Username,
			Email:       req.Email,
			DisplayName: req.DisplayName,
			Attributes: []lldap.Attribute{
				{Name: "first_name", Value: []string{req.FirstName}},
				{Name: "last_name", Value: []string{req.LastName}},
			},
		})
		return err
	}); err != nil {
		return nil, dserrors.BackendError("lldap", "create user", err)
	}
	s.logger.Info("User created: %s", user.Email)

	if err := s.metrics.Stage(StageEmail, func() error {
		return s.mailer.SendWelcome(ctx, req.Email, WelcomeData{
			DisplayName: req.DisplayName,
			Username:    req.Username,
		})
	}); err != nil {
		return user, dserrors.BackendError("smtp", "send onboarding email", err)
	}
	s.logger.Info("Onboarding email sent to %s", req.Email)

	return user, nil
}
