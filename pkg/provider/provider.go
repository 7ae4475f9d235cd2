package provider

import (
	"context"
	"errors"
)

// ErrItemExists is returned by Create when the item is already present.
var ErrItemExists = errors.New("item already exists")

// Field labels stored on every deploy key item.
const (
	FieldIdentity    = "identity"
	FieldIdentityPub = "identity.pub"
	FieldKnownHosts  = "known_hosts"
	FieldRepoURL     = "repo_url"
	FieldUsecaseName = "usecase_name"
)

// Provider is a secrets manager that can hold deploy key items.
type Provider interface {
	// Name returns a display name, e.g. "1Password".
	Name() string

	// Exists reports whether ref is present. A failure to determine that
	// (authentication, network) is returned as an error, never as false.
	Exists(ctx context.Context, ref ItemRef) (bool, error)

	// Create stores item. It must not overwrite an existing item.
	Create(ctx context.Context, item Item) error

	// Capabilities describes what the backend needs and guarantees.
	Capabilities() Capabilities
}

// Capabilities describes a backend.
type Capabilities struct {
	// AtomicCreate is true when Create itself refuses to overwrite, so the
	// Exists/Create race cannot produce a duplicate.
	AtomicCreate bool

	// RequiredCommands lists executables that must be on PATH.
	RequiredCommands []string
}

// ItemRef identifies an item inside a vault.
type ItemRef struct {
	Name  string
	Vault string
}

// Item is a deploy key as stored in a vault.
type Item struct {
	ItemRef

	Identity    string
	IdentityPub string
	KnownHosts  string
	RepoURL     string
	UsecaseName string
}

// Fields returns the item's fields keyed by label. Only identity is secret.
func (i Item) Fields() map[string]string {
	return map[string]string{
		FieldIdentity:    i.Identity,
		FieldIdentityPub: i.IdentityPub,
		FieldKnownHosts:  i.KnownHosts,
		FieldRepoURL:     i.RepoURL,
		FieldUsecaseName: i.UsecaseName,
	}
}
