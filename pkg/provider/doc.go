// Package provider defines the interface vault backends implement to store
// deploy keys.
//
// A backend stores one Item per (name, vault) pair and never overwrites:
// callers probe with Exists before Create, and backends whose storage offers
// an atomic create-if-absent primitive report a lost race as ErrItemExists.
//
//	p, err := providers.New(cfg.DeployKey, executor)
//	if err != nil {
//	    return err
//	}
//	exists, err := p.Exists(ctx, provider.ItemRef{Name: "deploy_key_media", Vault: "homelab-k8s"})
//
// Implementations live in internal/providers.
package provider
