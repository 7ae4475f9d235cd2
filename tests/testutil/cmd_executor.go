package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockCommandExecutor is a pkg/exec.CommandExecutor that answers from a table
// of canned responses and records every call.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command patterns to their mock responses.
	// Key format: "command arg1 arg2" (space-separated command and args).
	// A pattern matches any call whose key starts with it; the longest
	// matching pattern wins.
	Responses map[string]MockResponse

	// RecordedCalls stores all calls made for verification.
	RecordedCalls []RecordedCall
}

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command string
	Args    []string
	// Stdin is a copy of the input; callers may wipe their buffer afterwards.
	Stdin   []byte
	Context context.Context
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:     make(map[string]MockResponse),
		RecordedCalls: make([]RecordedCall, 0),
	}
}

// Execute returns the mocked response for the given command.
func (m *MockCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return m.ExecuteWithInput(ctx, nil, name, args...)
}

// ExecuteWithInput records a copy of stdin and returns the mocked response.
func (m *MockCommandExecutor) ExecuteWithInput(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var input []byte
	if stdin != nil {
		input = append([]byte(nil), stdin...)
	}
	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{
		Command: name,
		Args:    append([]string(nil), args...),
		Stdin:   input,
		Context: ctx,
	})

	key := buildKey(name, args)

	if resp, ok := m.Responses[key]; ok {
		return resp.Stdout, resp.Stderr, resp.Err
	}

	best := ""
	for pattern := range m.Responses {
		if strings.HasPrefix(key, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	if best != "" {
		resp := m.Responses[best]
		return resp.Stdout, resp.Stderr, resp.Err
	}

	return []byte{}, []byte{}, nil
}

func buildKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// AddResponse registers a mock response for a command pattern.
func (m *MockCommandExecutor) AddResponse(commandPattern string, response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandPattern] = response
}

// AddErrorResponse adds a failing response that writes errMsg to stderr.
func (m *MockCommandExecutor) AddErrorResponse(commandPattern string, errMsg string, exitCode int) {
	m.AddResponse(commandPattern, MockResponse{
		Stdout: []byte{},
		Stderr: []byte(errMsg),
		Err:    fmt.Errorf("exit status %d", exitCode),
	})
}

// GetCalls returns all recorded calls matching the given command name.
func (m *MockCommandExecutor) GetCalls(commandName string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []RecordedCall
	for _, call := range m.RecordedCalls {
		if call.Command == commandName {
			matches = append(matches, call)
		}
	}
	return matches
}

// CallCount returns the number of recorded calls.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// Reset clears all recorded calls and responses.
func (m *MockCommandExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = make(map[string]MockResponse)
	m.RecordedCalls = make([]RecordedCall, 0)
}

// FluxMockResponses provides pre-configured responses for the flux CLI.
type FluxMockResponses struct{}

// SecretManifest is the output of `flux create secret git --export`.
func (FluxMockResponses) SecretManifest(name, identity, identityPub, knownHosts string) MockResponse {
	return MockResponse{Stdout: []byte(SecretManifestYAML(name, identity, identityPub, knownHosts))}
}

// SecretManifestYAML renders a Secret manifest with stringData in flux's layout.
func SecretManifestYAML(name, identity, identityPub, knownHosts string) string {
	var b strings.Builder
	b.WriteString("---\napiVersion: v1\nkind: Secret\nmetadata:\n")
	fmt.Fprintf(&b, "  name: %s\n  namespace: flux-system\nstringData:\n", name)
	writeBlock(&b, "identity", identity)
	writeBlock(&b, "identity.pub", identityPub)
	writeBlock(&b, "known_hosts", knownHosts)
	return b.String()
}

func writeBlock(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "  %s: |\n", key)
	for _, line := range strings.Split(strings.TrimRight(value, "\n"), "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}

// OnePasswordMockResponses provides pre-configured responses for the op CLI.
type OnePasswordMockResponses struct{}

// ItemNotFound is op's answer to `item get` for an unknown title.
func (OnePasswordMockResponses) ItemNotFound(item, vault string) MockResponse {
	msg := fmt.Sprintf("[ERROR] 2026/01/01 12:00:00 %q isn't an item in the %q vault. Specify the item with its UUID, name, or domain.", item, vault)
	return MockResponse{Stderr: []byte(msg), Err: fmt.Errorf("exit status 1")}
}

// ItemGet is a minimal `item get --format=json` payload.
func (OnePasswordMockResponses) ItemGet(item, vault string) MockResponse {
	json := fmt.Sprintf(`{"id":"abc123","title":%q,"vault":{"id":"v1","name":%q},"category":"SECURE_NOTE"}`, item, vault)
	return MockResponse{Stdout: []byte(json)}
}

// NotSignedIn is op's answer when no session is active.
func (OnePasswordMockResponses) NotSignedIn() MockResponse {
	msg := "[ERROR] 2026/01/01 12:00:00 You are not currently signed in. Please run `op signin --help` for instructions"
	return MockResponse{Stderr: []byte(msg), Err: fmt.Errorf("exit status 1")}
}
