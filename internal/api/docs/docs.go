// Package docs registers the API's OpenAPI document with swag so the
// swagger handler can serve it at /docs/doc.json. Import it for its side
// effect.
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

//go:embed openapi.json
var Spec []byte

type doc struct{}

func (doc) ReadDoc() string { return string(Spec) }

func init() {
	swag.Register(swag.Name, doc{})
}
