// Package docs serves the hand-maintained OpenAPI document for the REST API
// through swag, so that http-swagger can render it at /swagger/index.html.
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

//go:embed openapi.json
var openAPI string

type doc struct{}

// ReadDoc implements swag.Swagger.
func (doc) ReadDoc() string {
	return openAPI
}

func init() {
	swag.Register(swag.Name, doc{})
}
