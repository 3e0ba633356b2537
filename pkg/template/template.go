// Package template performs placeholder substitution for funnel messages.
//
// Placeholders use literal double-brace syntax ({{key}}). Execution context
// values are applied first, then the lead's own name and email. The lead
// fields take precedence: context-provided "name"/"email" keys never reach the
// output. Unmatched placeholders are left verbatim.
package template

import (
	"strings"

	"github.com/ojmachado/leadflow/pkg/models"
)

// DefaultReaderName substitutes {{name}} when the lead has no name.
const DefaultReaderName = "Leitor"

// Substitute renders a message template against the execution context and the
// lead's own fields.
func Substitute(input string, contextData map[string]string, lead *models.Lead) string {
	result := input

	for key, value := range contextData {
		// The lead's own fields win; a context "name" or "email" must not
		// consume the placeholder before the lead pass runs.
		if key == "name" || key == "email" {
			continue
		}

		result = strings.ReplaceAll(result, placeholder(key), value)
	}

	name := lead.Name
	if name == "" {
		name = DefaultReaderName
	}

	result = strings.ReplaceAll(result, placeholder("name"), name)
	result = strings.ReplaceAll(result, placeholder("email"), lead.Email)

	return result
}

func placeholder(key string) string {
	return "{{" + key + "}}"
}
