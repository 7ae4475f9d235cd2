package fakes

import (
	"context"
	"sync"

	"github.com/systmms/homelab/pkg/provider"
)

// FakeProvider is an in-memory provider.Provider.
//
// Example usage:
//
//	store := fakes.NewFakeProvider("fake").
//	    WithItem(provider.ItemRef{Name: "deploy_key_media", Vault: "homelab-k8s"})
//
//	exists, _ := store.Exists(ctx, provider.ItemRef{Name: "deploy_key_media", Vault: "homelab-k8s"})
type FakeProvider struct {
	name         string
	capabilities provider.Capabilities

	items map[provider.ItemRef]provider.Item

	existsErr error
	createErr error

	callCount map[string]int

	mu sync.RWMutex
}

// NewFakeProvider creates an empty store with atomic create enabled.
func NewFakeProvider(name string) *FakeProvider {
	return &FakeProvider{
		name:         name,
		capabilities: provider.Capabilities{AtomicCreate: true},
		items:        make(map[provider.ItemRef]provider.Item),
		callCount:    make(map[string]int),
	}
}

// WithItem seeds an item.
func (f *FakeProvider) WithItem(ref provider.ItemRef) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[ref] = provider.Item{ItemRef: ref}
	return f
}

// WithCapabilities replaces the reported capabilities.
func (f *FakeProvider) WithCapabilities(caps provider.Capabilities) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capabilities = caps
	return f
}

// WithExistsError makes every Exists call fail with err.
func (f *FakeProvider) WithExistsError(err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsErr = err
	return f
}

// WithCreateError makes every Create call fail with err.
func (f *FakeProvider) WithCreateError(err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
	return f
}

func (f *FakeProvider) Name() string {
	return f.name
}

func (f *FakeProvider) Capabilities() provider.Capabilities {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.capabilities
}

func (f *FakeProvider) Exists(ctx context.Context, ref provider.ItemRef) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount["Exists"]++

	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.items[ref]
	return ok, nil
}

func (f *FakeProvider) Create(ctx context.Context, item provider.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount["Create"]++

	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.items[item.ItemRef]; ok && f.capabilities.AtomicCreate {
		return provider.ErrItemExists
	}
	f.items[item.ItemRef] = item
	return nil
}

// Item returns a stored item.
func (f *FakeProvider) Item(ref provider.ItemRef) (provider.Item, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	item, ok := f.items[ref]
	return item, ok
}

// CallCount returns how many times method was called.
func (f *FakeProvider) CallCount(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.callCount[method]
}
