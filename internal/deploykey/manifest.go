package deploykey

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/crypto/ssh"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"
)

// Keys flux writes into the Secret's stringData for SSH git credentials.
const (
	IdentityKey    = "identity"
	IdentityPubKey = "identity.pub"
	KnownHostsKey  = "known_hosts"
)

const manifestSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["stringData"],
  "properties": {
    "stringData": {
      "type": "object",
      "required": ["identity", "identity.pub", "known_hosts"],
      "properties": {
        "identity":     {"type": "string", "minLength": 1},
        "identity.pub": {"type": "string", "minLength": 1},
        "known_hosts":  {"type": "string", "minLength": 1}
      }
    }
  }
}`

var manifestSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(manifestSchemaJSON))
})

// DeployKey is the SSH material extracted from a flux git secret.
type DeployKey struct {
	Identity    string
	IdentityPub string
	KnownHosts  string
}

// Fingerprint returns the SHA256 fingerprint of the public key.
func (k DeployKey) Fingerprint() (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(k.IdentityPub))
	if err != nil {
		return "", fmt.Errorf("failed to parse public key: %w", err)
	}
	return ssh.FingerprintSHA256(pub), nil
}

// ExtractSecretFields parses a Secret manifest and returns the identity,
// public key and known_hosts from its stringData. All three must be present
// and non-empty.
func ExtractSecretFields(manifest string) (DeployKey, error) {
	raw, err := yaml.YAMLToJSON([]byte(manifest))
	if err != nil {
		return DeployKey{}, &SecretDataError{Reason: "Failed to parse YAML", Manifest: manifest, Err: err}
	}

	schema, err := manifestSchema()
	if err != nil {
		return DeployKey{}, fmt.Errorf("compile manifest schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return DeployKey{}, &SecretDataError{Reason: "Failed to extract secret data", Manifest: manifest, Err: err}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			problems = append(problems, re.String())
		}
		return DeployKey{}, &SecretDataError{
			Reason:   "Failed to extract required fields from flux output (" + strings.Join(problems, "; ") + ")",
			Manifest: manifest,
		}
	}

	var secret corev1.Secret
	if err := json.Unmarshal(raw, &secret); err != nil {
		return DeployKey{}, &SecretDataError{Reason: "Failed to decode Secret manifest", Manifest: manifest, Err: err}
	}

	return DeployKey{
		Identity:    secret.StringData[IdentityKey],
		IdentityPub: secret.StringData[IdentityPubKey],
		KnownHosts:  secret.StringData[KnownHostsKey],
	}, nil
}
