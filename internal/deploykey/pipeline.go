// Package deploykey generates Flux SSH deploy keys and stores them in a
// secrets manager.
//
// A run is a fixed sequence of stages:
//
//	validate → check_commands → generate → extract → check_existing → create
//
// Every stage either succeeds or aborts the run. Nothing before create has an
// externally visible side effect, and create is skipped when the item is
// already present, so re-running a finished setup fails without duplicating.
package deploykey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	dserrors "github.com/systmms/homelab/internal/errors"
	"github.com/systmms/homelab/internal/logging"
	"github.com/systmms/homelab/internal/metrics"
	"github.com/systmms/homelab/internal/secure"
	"github.com/systmms/homelab/pkg/provider"
)

// Stage names, as recorded in metrics.
const (
	StageValidate      = "validate"
	StageCheckCommands = "check_commands"
	StageGenerate      = "generate"
	StageExtract       = "extract"
	StageCheckExisting = "check_existing"
	StageCreate        = "create"
)

// Request is the input of one pipeline run. Exactly one of KeyFile and
// GenerateKey must be set.
type Request struct {
	Usecase     string
	GitURL      string
	KeyFile     string
	GenerateKey bool
	Vault       string
}

// Result describes the stored item.
type Result struct {
	Item        provider.ItemRef
	GitURL      string
	PublicKey   string
	Fingerprint string
}

// Pipeline wires the stages to their backends.
type Pipeline struct {
	generator SecretGenerator
	store     provider.Provider
	newStore  func(context.Context) (provider.Provider, error)
	checker   *CommandChecker
	commands  []string
	logger    *logging.Logger
	metrics   *metrics.Recorder
}

// Config holds the collaborators of a Pipeline.
type Config struct {
	Generator SecretGenerator

	// Store is the vault backend. When nil, NewStore builds it once the
	// request has passed validation.
	Store    provider.Provider
	NewStore func(context.Context) (provider.Provider, error)

	Checker *CommandChecker

	// Commands are checked before generation in addition to the store's
	// own RequiredCommands.
	Commands []string

	Logger  *logging.Logger
	Metrics *metrics.Recorder
}

// NewPipeline creates a pipeline. Checker, Logger and Metrics default when nil.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		generator: cfg.Generator,
		store:     cfg.Store,
		newStore:  cfg.NewStore,
		checker:   cfg.Checker,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
	if p.checker == nil {
		p.checker = NewCommandChecker(nil)
	}
	if p.metrics == nil {
		p.metrics = metrics.NewRecorder("deploy-key")
	}
	if p.logger == nil {
		p.logger = logging.NewWithWriter(io.Discard, false, true)
	}
	p.commands = append(p.commands, cfg.Commands...)
	return p
}

// Run executes every stage in order and stops at the first failure.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	var gitURL string
	err := p.metrics.Stage(StageValidate, func() error {
		var err error
		gitURL, err = p.validate(req)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Normalized git URL: %s", gitURL)

	store, err := p.backend(ctx)
	if err != nil {
		return nil, err
	}
	caps := store.Capabilities()
	if !caps.AtomicCreate {
		p.logger.Debug("%s has no atomic create; a concurrent run could store a second item", store.Name())
	}

	commands := append(append([]string{}, p.commands...), caps.RequiredCommands...)
	if err := p.metrics.Stage(StageCheckCommands, func() error {
		return p.checker.CheckRequiredCommands(commands)
	}); err != nil {
		return nil, err
	}

	var manifest string
	if err := p.metrics.Stage(StageGenerate, func() error {
		var err error
		manifest, err = p.generate(ctx, req, gitURL)
		return err
	}); err != nil {
		var fluxErr *FluxSecretError
		if errors.As(err, &fluxErr) && fluxErr.ExitCode >= 0 {
			p.logger.Debug("flux exited with code %d", fluxErr.ExitCode)
		}
		return nil, err
	}

	var key DeployKey
	if err := p.metrics.Stage(StageExtract, func() error {
		var err error
		key, err = ExtractSecretFields(manifest)
		return err
	}); err != nil {
		return nil, err
	}

	ref := provider.ItemRef{Name: ItemName(req.Usecase), Vault: req.Vault}

	var exists bool
	if err := p.metrics.Stage(StageCheckExisting, func() error {
		var err error
		exists, err = store.Exists(ctx, ref)
		return err
	}); err != nil {
		return nil, err
	}
	if exists {
		return nil, &ItemExistsError{Backend: store.Name(), Item: ref.Name, Vault: ref.Vault}
	}

	item := provider.Item{
		ItemRef:     ref,
		Identity:    key.Identity,
		IdentityPub: key.IdentityPub,
		KnownHosts:  key.KnownHosts,
		RepoURL:     gitURL,
		UsecaseName: req.Usecase,
	}
	if err := p.metrics.Stage(StageCreate, func() error {
		return store.Create(ctx, item)
	}); err != nil {
		if errors.Is(err, provider.ErrItemExists) {
			return nil, &ItemExistsError{Backend: store.Name(), Item: ref.Name, Vault: ref.Vault}
		}
		return nil, err
	}

	result := &Result{Item: ref, GitURL: gitURL, PublicKey: key.IdentityPub}
	if fp, err := key.Fingerprint(); err != nil {
		p.logger.Warn("Could not fingerprint public key: %v", err)
	} else {
		result.Fingerprint = fp
	}
	return result, nil
}

// backend returns the configured store, building it on first use.
func (p *Pipeline) backend(ctx context.Context) (provider.Provider, error) {
	if p.store == nil {
		if p.newStore == nil {
			return nil, fmt.Errorf("no vault backend configured")
		}
		store, err := p.newStore(ctx)
		if err != nil {
			return nil, err
		}
		p.store = store
	}
	return p.store, nil
}

func (p *Pipeline) validate(req Request) (string, error) {
	if req.KeyFile != "" && req.GenerateKey {
		return "", &ValidationError{Field: "key source", Value: req.KeyFile, Reason: "--key-file and --generate-key are mutually exclusive."}
	}
	if req.KeyFile == "" && !req.GenerateKey {
		return "", &ValidationError{Field: "key source", Value: "", Reason: "One of --key-file or --generate-key is required."}
	}
	if req.Vault == "" {
		return "", &ValidationError{Field: "vault name", Value: "", Reason: "Vault name must not be empty."}
	}
	if err := ValidateUsecase(req.Usecase); err != nil {
		return "", err
	}
	return NormalizeGitURL(req.GitURL)
}

func (p *Pipeline) generate(ctx context.Context, req Request, gitURL string) (string, error) {
	if req.GenerateKey {
		p.logger.Info("Generating new ECDSA P-521 key using flux...")
		return p.generator.GenerateWithNewKey(ctx, gitURL)
	}

	key, err := secure.ReadKeyFile(req.KeyFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", dserrors.UserError{
				Message:    fmt.Sprintf("Private key file %s does not exist", req.KeyFile),
				Suggestion: "Pass the path of an existing private key, or use --generate-key",
				Err:        err,
			}
		}
		return "", fmt.Errorf("failed to read private key file %s: %w", req.KeyFile, err)
	}
	defer key.Destroy()
	p.logger.Debug("Read %d bytes of key material from %s", key.Len(), req.KeyFile)

	var manifest string
	err = key.With(func(b []byte) error {
		var err error
		manifest, err = p.generator.GenerateFromKey(ctx, gitURL, b)
		return err
	})
	return manifest, err
}
