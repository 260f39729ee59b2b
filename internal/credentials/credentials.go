// Package credentials loads the speech-to-text service credentials from the
// dotenv file kept in the secrets directory.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"scribe/internal/services"
)

// Recognized keys. The provider-specific aliases are accepted so existing
// Azure OpenAI .env files keep working.
const (
	KeyAPIKey        = "API_KEY"
	KeyAPIEndpoint   = "API_ENDPOINT"
	KeyAPIDeployment = "API_DEPLOYMENT"
)

var aliases = map[string][]string{
	KeyAPIKey:        {"AZURE_OPENAI_API_KEY"},
	KeyAPIEndpoint:   {"AZURE_OPENAI_ENDPOINT"},
	KeyAPIDeployment: {"AZURE_OPENAI_DEPLOYMENT"},
}

// Credentials holds the values needed to reach the speech-to-text deployment.
type Credentials struct {
	APIKey     string
	Endpoint   string
	Deployment string
	Source     string
}

// Redacted returns a copy safe to log.
func (c Credentials) Redacted() Credentials {
	out := c
	switch n := len(c.APIKey); {
	case n == 0:
	case n <= 8:
		out.APIKey = "****"
	default:
		out.APIKey = c.APIKey[:4] + "****"
	}
	return out
}

// Path returns the credential file location inside secretsDir.
func Path(secretsDir, fileName string) string {
	if strings.TrimSpace(fileName) == "" {
		fileName = ".env"
	}
	return filepath.Join(secretsDir, fileName)
}

// Load reads and validates the credential file. Every failure is tagged with
// services.ErrCredential; callers abort the run before any job starts.
func Load(secretsDir, fileName string) (Credentials, error) {
	secretsDir = strings.TrimSpace(secretsDir)
	if secretsDir == "" {
		return Credentials{}, services.Wrap(services.ErrCredential, "credentials", "locate", "secrets directory not set", nil)
	}
	path := Path(secretsDir, fileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, services.Wrap(services.ErrCredential, "credentials", "locate", fmt.Sprintf("no credential file at %s", path), nil)
		}
		return Credentials{}, services.Wrap(services.ErrCredential, "credentials", "stat", path, err)
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return Credentials{}, services.Wrap(services.ErrCredential, "credentials", "parse", path, err)
	}
	return FromMap(values, path)
}

// FromMap builds Credentials from already parsed key/value pairs.
func FromMap(values map[string]string, source string) (Credentials, error) {
	creds := Credentials{
		APIKey:     lookup(values, KeyAPIKey),
		Endpoint:   strings.TrimRight(lookup(values, KeyAPIEndpoint), "/"),
		Deployment: lookup(values, KeyAPIDeployment),
		Source:     source,
	}
	var missing []string
	if creds.APIKey == "" {
		missing = append(missing, KeyAPIKey)
	}
	if creds.Endpoint == "" {
		missing = append(missing, KeyAPIEndpoint)
	}
	if creds.Deployment == "" {
		missing = append(missing, KeyAPIDeployment)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Credentials{}, services.Wrap(services.ErrCredential, "credentials", "validate", fmt.Sprintf("missing keys %s in %s", strings.Join(missing, ", "), source), nil)
	}
	parsed, err := url.Parse(creds.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Credentials{}, services.Wrap(services.ErrCredential, "credentials", "validate", fmt.Sprintf("%s is not an absolute URL", KeyAPIEndpoint), err)
	}
	return creds, nil
}

func lookup(values map[string]string, key string) string {
	if v := strings.TrimSpace(values[key]); v != "" {
		return v
	}
	for _, alias := range aliases[key] {
		if v := strings.TrimSpace(values[alias]); v != "" {
			return v
		}
	}
	return ""
}
