// Package fakes provides test doubles for the homelab secret store backends.
//
// Fakes are manually implemented (not generated) in-memory versions of the
// client interfaces the providers depend on, so provider and pipeline tests
// run without a 1Password account, AWS credentials or a vault server.
//
// Usage:
//
//	sm := fakes.NewFakeSecretsManagerClient()
//	p, _ := providers.NewAWSSecretsManagerProvider(ctx, cfg,
//	    providers.WithSecretsManagerClient(sm))
//	// Test provider methods...
package fakes
