package querysql

import "strings"

// EscapeIdentifier wraps name in the dialect's quote character, doubling
// any quote character inside it.
func EscapeIdentifier(d Dialect, name string) (string, error) {
	if name == "" {
		return "", NewError(CodeInvalidIdentifier, "", "identifier must not be empty")
	}
	q := string(d.QuoteChar())
	return q + strings.ReplaceAll(name, q, q+q) + q, nil
}

// UnescapeIdentifier reverses EscapeIdentifier.
func UnescapeIdentifier(d Dialect, quoted string) (string, error) {
	q := string(d.QuoteChar())
	if len(quoted) < 3 || !strings.HasPrefix(quoted, q) || !strings.HasSuffix(quoted, q) {
		return "", NewError(CodeInvalidIdentifier, quoted, "not a quoted identifier")
	}
	inner := quoted[1 : len(quoted)-1]
	if strings.Count(inner, q)%2 != 0 || strings.Contains(strings.ReplaceAll(inner, q+q, ""), q) {
		return "", NewError(CodeInvalidIdentifier, quoted, "unpaired quote character")
	}
	return strings.ReplaceAll(inner, q+q, q), nil
}
