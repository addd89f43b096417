package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go
// templates with {{.VAR_NAME}} syntax. Plain $ is left untouched, so
// passwords and regex patterns containing $ survive expansion:
//
//   - {{.OPENAI_API_KEY}} → value of OPENAI_API_KEY
//   - {{.DB_HOST}}:{{.DB_PORT}} → both variables expanded
//   - pattern: "^secret.*$" → preserved literally
//
// Missing variables expand to empty string; validation catches required
// fields left empty. Malformed templates pass the content through
// unchanged so the YAML parser reports the real position.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		// Split only on the first = to keep values containing =.
		if key, value, ok := strings.Cut(env, "="); ok && key != "" {
			envMap[key] = value
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}
	return buf.Bytes()
}
