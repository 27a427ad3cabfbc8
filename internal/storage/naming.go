package storage

import "strings"

// AnonymousRespondent tags submissions with no resolved identity.
const AnonymousRespondent = "anonymous"

// RespondentTag converts an email into a storage-safe respondent tag,
// e.g. petr@keboola.com -> petr_keboola.com. The mapping must stay
// bit-exact: it is how a returning respondent finds their answers.
func RespondentTag(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return AnonymousRespondent
	}
	return strings.Replace(email, "@", "_", 1)
}

// EmailFromTag reverses RespondentTag, e.g. petr_keboola.com ->
// petr@keboola.com. Tags without an underscore come back unchanged.
func EmailFromTag(tag string) string {
	if tag == "" || tag == AnonymousRespondent {
		return ""
	}
	parts := strings.SplitN(tag, "_", 2)
	if len(parts) == 2 {
		return parts[0] + "@" + parts[1]
	}
	return tag
}
