// Package secure keeps private key material out of ordinary Go memory.
//
// Key bytes read from disk are moved into a memguard enclave immediately:
// encrypted at rest (XSalsa20Poly1305), mlocked where the platform allows,
// and wiped when the buffer is destroyed. Callers open the enclave only for
// the duration of the call that needs the plaintext:
//
//	key, err := secure.ReadKeyFile("~/.ssh/deploy_ed25519")
//	if err != nil {
//	    return err
//	}
//	defer key.Destroy()
//
//	err = key.With(func(b []byte) error {
//	    _, err := generator.GenerateFromKey(ctx, url, b)
//	    return err
//	})
//
// It does not protect against attackers with access to the running process.
package secure
