package deploykey

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"
)

var (
	usecasePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	// Tried in this order; the canonical form must match first so valid
	// URLs are returned untouched.
	sshURLPattern       = regexp.MustCompile(`^ssh://[^@]+@[^/]+/.+\.git$`)
	shorthandURLPattern = regexp.MustCompile(`^([^@]+)@([^:]+):(.+)\.git$`)
	sshNoGitURLPattern  = regexp.MustCompile(`^ssh://[^@]+@[^/]+/.+$`)
)

// ItemPrefix is prepended to the usecase to form the vault item name.
const ItemPrefix = "deploy_key_"

// ItemName returns the vault item title for a validated usecase.
func ItemName(usecase string) string {
	return ItemPrefix + usecase
}

// ValidateUsecase checks that usecase is lowercase, starts with a letter and
// only contains letters, digits and underscores.
func ValidateUsecase(usecase string) error {
	err := validation.Validate(usecase,
		validation.Required,
		validation.Match(usecasePattern),
	)
	if err != nil {
		return &ValidationError{
			Field:  "usecase",
			Value:  usecase,
			Reason: "Usecase must be lowercase, start with a letter, and only contain letters, numbers, and underscores.",
		}
	}
	return nil
}

// NormalizeGitURL converts a git URL to ssh://user@host/path.git. It accepts
// the canonical form, the scp-like shorthand user@host:path.git and the
// canonical form without the .git suffix.
func NormalizeGitURL(gitURL string) (string, error) {
	if sshURLPattern.MatchString(gitURL) {
		return gitURL, nil
	}

	if m := shorthandURLPattern.FindStringSubmatch(gitURL); m != nil {
		user, host, path := m[1], m[2], m[3]
		return fmt.Sprintf("ssh://%s@%s/%s.git", user, host, path), nil
	}

	if sshNoGitURLPattern.MatchString(gitURL) && !strings.HasSuffix(gitURL, ".git") {
		return gitURL + ".git", nil
	}

	return "", &ValidationError{
		Field:  "git URL",
		Value:  gitURL,
		Reason: "Expected format: ssh://user@host/path.git or user@host:path.git",
	}
}
