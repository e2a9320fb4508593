// Package apidoc describes the HTTP API as a Swagger 2.0 document built from
// the router's domain groups and registers it with swag, so gin-swagger can
// serve it at /swagger/doc.json next to the UI.
package apidoc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/bhavan/backend/internal/interfaces/http/router"
	"github.com/go-openapi/spec"
	"github.com/swaggo/swag/v2"
)

// BearerAuth names the security scheme of routes behind admin middleware
const BearerAuth = "BearerAuth"

// Info describes the published API
type Info struct {
	Title       string
	Version     string
	Description string
	Host        string
	BasePath    string
}

// Build describes every route of groups. Path parameters are declared as
// required strings and guarded routes require a bearer token.
func Build(info Info, groups []*router.DomainGroup) *spec.Swagger {
	doc := &spec.Swagger{SwaggerProps: spec.SwaggerProps{
		Swagger: "2.0",
		Info: &spec.Info{InfoProps: spec.InfoProps{
			Title:       info.Title,
			Version:     info.Version,
			Description: info.Description,
		}},
		Host:     info.Host,
		BasePath: info.BasePath,
		Consumes: []string{"application/json"},
		Produces: []string{"application/json"},
		Paths:    &spec.Paths{Paths: make(map[string]spec.PathItem)},
		SecurityDefinitions: spec.SecurityDefinitions{
			BearerAuth: spec.APIKeyAuth("Authorization", "header"),
		},
	}}

	for _, g := range groups {
		routes := g.Routes()
		if len(routes) == 0 {
			continue
		}
		doc.Tags = append(doc.Tags, spec.NewTag(g.Name(), "", nil))
		for _, rt := range routes {
			path, params := swaggerPath(rt.Path)
			op := spec.NewOperation(operationID(rt.Method, path)).
				WithSummary(rt.Description).
				WithTags(g.Name()).
				RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("OK"))
			for _, name := range params {
				op.AddParam(spec.PathParam(name).Typed("string", ""))
			}
			if rt.Guarded {
				op.SecuredWith(BearerAuth)
				op.RespondsWith(http.StatusUnauthorized, spec.NewResponse().WithDescription("Missing or invalid token"))
			}

			item := doc.Paths.Paths[path]
			setOperation(&item, rt.Method, op)
			doc.Paths.Paths[path] = item
		}
	}
	sort.Slice(doc.Tags, func(i, j int) bool { return doc.Tags[i].Name < doc.Tags[j].Name })
	return doc
}

// swaggerPath rewrites gin parameters (:ref, *path) into {ref} form
func swaggerPath(path string) (string, []string) {
	if path == "" {
		path = "/"
	}
	segments := strings.Split(path, "/")
	var params []string
	for i, seg := range segments {
		if seg == "" || (seg[0] != ':' && seg[0] != '*') {
			continue
		}
		name := seg[1:]
		params = append(params, name)
		segments[i] = "{" + name + "}"
	}
	return strings.Join(segments, "/"), params
}

// operationID is stable per method and path, e.g. postAdminListingsIdApprove
func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	upper := true
	for _, r := range path {
		switch {
		case r == '/' || r == '{' || r == '}' || r == '-' || r == '_':
			upper = true
		case upper:
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func setOperation(item *spec.PathItem, method string, op *spec.Operation) {
	switch method {
	case http.MethodGet:
		item.Get = op
	case http.MethodPost:
		item.Post = op
	case http.MethodPut:
		item.Put = op
	case http.MethodPatch:
		item.Patch = op
	case http.MethodDelete:
		item.Delete = op
	case http.MethodHead:
		item.Head = op
	case http.MethodOptions:
		item.Options = op
	}
}

type document struct {
	mu  sync.RWMutex
	doc string
}

// ReadDoc implements swag.Swagger
func (d *document) ReadDoc() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc
}

var published = &document{doc: `{"swagger":"2.0","info":{"title":"","version":""},"paths":{}}`}

func init() {
	swag.Register(swag.Name, published)
}

// Publish replaces the document served as /swagger/doc.json
func Publish(doc *spec.Swagger) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode API description: %w", err)
	}
	published.mu.Lock()
	published.doc = string(raw)
	published.mu.Unlock()
	return nil
}
