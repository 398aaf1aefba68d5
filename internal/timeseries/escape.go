package timeseries

import "strings"

// escapeTag escapes a tag key or value per the line-protocol grammar:
// commas, spaces, and equals signs must be backslash-escaped. Tags
// never carry quotes, so there is no quote rule here.
func escapeTag(s string) string {
	r := strings.NewReplacer(
		`,`, `\,`,
		`=`, `\=`,
		` `, `\ `,
	)
	return r.Replace(s)
}

// escapeMeasurement escapes a measurement name: commas and spaces only,
// equals signs are left alone per the line-protocol spec.
func escapeMeasurement(s string) string {
	r := strings.NewReplacer(
		`,`, `\,`,
		` `, `\ `,
	)
	return r.Replace(s)
}

// escapeStringField escapes a string field value: backslashes and
// double quotes must be escaped before the value is wrapped in quotes.
func escapeStringField(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
	)
	return r.Replace(s)
}
