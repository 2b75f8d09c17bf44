package scheduler

import (
	"html"
	"regexp"
	"strings"

	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_]*)\s*\}\}`)

// Vars are the substitution values of one recipient
type Vars map[string]string

// RecipientVars builds the variables of a contact. project and address both
// resolve to the assigned pool entry.
func RecipientVars(contact *models.Contact, address string) Vars {
	first := strings.TrimSpace(utils.Deref(contact.FirstName, ""))
	if first == "" {
		first = utils.DefaultFirstName
	}
	return Vars{
		"firstName": first,
		"lastName":  strings.TrimSpace(utils.Deref(contact.LastName, "")),
		"project":   address,
		"address":   address,
	}
}

// Render substitutes known placeholders. Unknown ones are left verbatim.
// Values are HTML escaped when escape is set.
func Render(tmpl string, vars Vars, escape bool) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			return m
		}
		if escape {
			return html.EscapeString(v)
		}
		return v
	})
}
