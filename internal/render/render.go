// Package render performs safe placeholder substitution for email subject
// and body patterns. Only $identifier and ${identifier} tokens with a known
// key are replaced; everything else is left verbatim. There is deliberately
// no conditional or loop syntax: template text is user-authored, so this is
// pure string interpolation with no logic execution.
package render

import (
	"strings"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// Render substitutes known placeholders in pattern with values from vars.
// Tokens follow the $identifier / ${identifier} convention; $$ produces a
// literal dollar sign. Unrecognized placeholders stay untouched, which makes
// a second render pass with the same map a no-op.
func Render(pattern string, vars map[string]string) string {
	if pattern == "" || !strings.ContainsRune(pattern, '$') {
		return pattern
	}

	var b strings.Builder
	b.Grow(len(pattern))

	for i := 0; i < len(pattern); {
		c := pattern[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		// Trailing '$' with nothing after it.
		if i+1 >= len(pattern) {
			b.WriteByte(c)
			i++
			continue
		}

		switch next := pattern[i+1]; {
		case next == '$':
			b.WriteByte('$')
			i += 2
		case next == '{':
			end := strings.IndexByte(pattern[i+2:], '}')
			if end < 0 {
				b.WriteByte(c)
				i++
				continue
			}
			name := pattern[i+2 : i+2+end]
			if val, ok := lookup(vars, name); ok {
				b.WriteString(val)
			} else {
				b.WriteString(pattern[i : i+2+end+1])
			}
			i += 2 + end + 1
		case isIdentStart(next):
			j := i + 1
			for j < len(pattern) && isIdentPart(pattern[j]) {
				j++
			}
			name := pattern[i+1 : j]
			if val, ok := vars[name]; ok {
				b.WriteString(val)
			} else {
				b.WriteString(pattern[i:j])
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String()
}

// lookup resolves a braced token name. Braced names must still be plain
// identifiers; anything else is treated as unrecognized.
func lookup(vars map[string]string, name string) (string, bool) {
	if name == "" || !isIdentStart(name[0]) {
		return "", false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return "", false
		}
	}
	val, ok := vars[name]
	return val, ok
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// Vars builds the substitution map for one recipient within one campaign.
// Precedence, lowest to highest: campaign variables, recipient custom
// fields, then the recipient's built-in fields. A recipient value always
// wins over a campaign value sharing the same key.
func Vars(r *domain.Recipient, campaignVars map[string]string) map[string]string {
	vars := make(map[string]string, len(campaignVars)+len(r.CustomFields)+5)
	for k, v := range campaignVars {
		vars[k] = v
	}
	for k, v := range r.CustomFields {
		vars[k] = v
	}
	vars["name"] = r.DisplayName()
	vars["first_name"] = r.FirstName
	vars["last_name"] = r.LastName
	vars["email"] = r.Email
	vars["company"] = r.Company
	return vars
}
