// Package docs содержит OpenAPI документ сервиса.
package docs

import _ "embed"

//go:embed swagger.json
var SwaggerJSON []byte
