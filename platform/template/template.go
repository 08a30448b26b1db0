// Package template renders flat {{variable}} message templates.
// Tenants configure reminder, deposit and follow-up texts with placeholders
// that are substituted at send time. There is no nesting or conditional logic;
// an unknown placeholder renders as an empty string rather than leaking the
// literal tag to the recipient.
package template

import "regexp"

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Render replaces every {{key}} occurrence in tpl with vars[key].
// Missing keys render as "".
func Render(tpl string, vars map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(tpl, func(match string) string {
		key := placeholderRegex.FindStringSubmatch(match)[1]
		return vars[key]
	})
}
