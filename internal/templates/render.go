package templates

import "strings"

// Vars holds the lead variables available to templates.
type Vars struct {
	Name   string
	Status string
	Phone  string
	Email  string
	Seller string
}

// Render substitutes {{variable}} placeholders in the template body.
// Unknown placeholders are left untouched.
func Render(body string, vars Vars) string {
	replacer := strings.NewReplacer(
		"{{name}}", vars.Name,
		"{{status}}", vars.Status,
		"{{phone}}", vars.Phone,
		"{{email}}", vars.Email,
		"{{seller}}", vars.Seller,
	)
	return replacer.Replace(body)
}
