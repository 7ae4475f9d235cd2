package fakes

import (
	"context"
	"errors"
	"fmt"
	"sync"

	vaultapi "github.com/hashicorp/vault/api"
)

// FakeKVClient is an in-memory KV v2 engine. Put honours check-and-set 0
// the way vault does: the write is refused when the path already exists.
type FakeKVClient struct {
	mu sync.Mutex

	Data map[string]map[string]interface{}
	// Errors maps paths to errors returned by every call on that path
	Errors map[string]error

	PutCalls int
}

// NewFakeKVClient creates an empty fake engine
func NewFakeKVClient() *FakeKVClient {
	return &FakeKVClient{
		Data:   make(map[string]map[string]interface{}),
		Errors: make(map[string]error),
	}
}

// Seed stores data at path without going through Put
func (f *FakeKVClient) Seed(path string, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Data[path] = data
}

// Stored returns the data at path or nil
func (f *FakeKVClient) Stored(path string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Data[path]
}

func (f *FakeKVClient) Get(ctx context.Context, secretPath string) (*vaultapi.KVSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[secretPath]; ok {
		return nil, err
	}
	data, ok := f.Data[secretPath]
	if !ok {
		return nil, fmt.Errorf("%w: at secret/data/%s", vaultapi.ErrSecretNotFound, secretPath)
	}
	return &vaultapi.KVSecret{Data: data, VersionMetadata: &vaultapi.KVVersionMetadata{Version: 1}}, nil
}

func (f *FakeKVClient) Put(ctx context.Context, secretPath string, data map[string]interface{}, opts ...vaultapi.KVOption) (*vaultapi.KVSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++

	if err, ok := f.Errors[secretPath]; ok {
		return nil, err
	}

	cas := -1
	for _, opt := range opts {
		key, value := opt()
		if key != "cas" {
			continue
		}
		if n, ok := value.(int); ok {
			cas = n
		}
	}
	if _, exists := f.Data[secretPath]; exists && cas == 0 {
		return nil, errors.New("Error making API request.\n\nCode: 400. Errors:\n\n* check-and-set parameter did not match the current version")
	}

	f.Data[secretPath] = data
	return &vaultapi.KVSecret{Data: data, VersionMetadata: &vaultapi.KVVersionMetadata{Version: 1}}, nil
}
