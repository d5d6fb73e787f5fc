package auth

import (
	"fmt"
	"strings"

	"github.com/aelexs/authgate/internal/domain"
)

// Credential is a parsed "<scheme> <token>" authorization value.
type Credential struct {
	Scheme string
	Token  string
}

// ParseCredential splits an Authorization header value.
//
// An empty or blank value is ErrMissingCredential. Anything that is not
// exactly two whitespace-separated fields is ErrInvalidCredential. The token
// itself is not inspected.
func ParseCredential(header string) (Credential, error) {
	if strings.TrimSpace(header) == "" {
		return Credential{}, domain.ErrMissingCredential
	}
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return Credential{}, fmt.Errorf("%w: expected \"<scheme> <token>\", got %d field(s)",
			domain.ErrInvalidCredential, len(fields))
	}
	return Credential{Scheme: fields[0], Token: fields[1]}, nil
}

// HasScheme reports whether c uses scheme, compared case-insensitively.
// An empty scheme matches any credential.
func (c Credential) HasScheme(scheme string) bool {
	return scheme == "" || strings.EqualFold(c.Scheme, scheme)
}
