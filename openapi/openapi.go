package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

// OpenAPI accumulates an OpenAPI 3 document as routes are registered.
type OpenAPI struct {
	mu      sync.RWMutex
	spec    *openapi3.T
	schemas *schemaRegistry
}

func New(title, version string) *OpenAPI {
	return &OpenAPI{
		spec: &openapi3.T{
			OpenAPI: "3.0.3",
			Info: &openapi3.Info{
				Title:   title,
				Version: version,
			},
			Paths:      openapi3.NewPaths(),
			Components: &openapi3.Components{},
		},
		schemas: newSchemaRegistry(),
	}
}

func (o *OpenAPI) Description(desc string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Info.Description = desc
	return o
}

func (o *OpenAPI) Server(url, description string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Servers = append(o.spec.Servers, &openapi3.Server{URL: url, Description: description})
	return o
}

func (o *OpenAPI) Tag(name, description string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Tags = append(o.spec.Tags, &openapi3.Tag{Name: name, Description: description})
	return o
}

// BearerAuth registers an HTTP bearer (JWT) security scheme under name.
func (o *OpenAPI) BearerAuth(name, description string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.spec.Components.SecuritySchemes == nil {
		o.spec.Components.SecuritySchemes = make(openapi3.SecuritySchemes)
	}
	o.spec.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  description,
		},
	}
	return o
}

func (o *OpenAPI) Spec() *openapi3.T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.spec
}

// Validate checks the generated document against the OpenAPI 3 rules.
func (o *OpenAPI) Validate(ctx context.Context) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.spec.Validate(ctx)
}

func (o *OpenAPI) JSON() ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return json.MarshalIndent(o.spec, "", "  ")
}

func (o *OpenAPI) YAML() ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	intermediate, err := o.spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(intermediate)
}

func (o *OpenAPI) JSONHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := o.JSON()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to render OpenAPI document").SetInternal(err)
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

func (o *OpenAPI) YAMLHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := o.YAML()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to render OpenAPI document").SetInternal(err)
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
}

// Mount serves the document at <path>.json and <path>.yaml.
func (o *OpenAPI) Mount(e *echo.Echo, path string) {
	path = strings.TrimSuffix(path, "/")
	e.GET(path+".json", o.JSONHandler())
	e.GET(path+".yaml", o.YAMLHandler())
}

// Document starts describing a route. Echo path parameters are declared
// automatically.
func (o *OpenAPI) Document(method, path string) *RouteBuilder {
	op := &openapi3.Operation{Responses: openapi3.NewResponses()}
	for _, part := range strings.Split(path, "/") {
		if name, ok := strings.CutPrefix(part, ":"); ok {
			op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
		}
	}

	return &RouteBuilder{
		openapi:   o,
		method:    strings.ToUpper(method),
		path:      path,
		operation: op,
	}
}

func (o *OpenAPI) addOperation(method, path string, op *openapi3.Operation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.AddOperation(echoPathToOpenAPI(path), method, op)
}

func (o *OpenAPI) schemaFor(example any) *openapi3.SchemaRef {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.spec.Components.Schemas == nil {
		o.spec.Components.Schemas = make(openapi3.Schemas)
	}
	return o.schemas.ref(example, o.spec.Components.Schemas)
}

func echoPathToOpenAPI(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if name, ok := strings.CutPrefix(part, ":"); ok {
			parts[i] = "{" + name + "}"
		}
	}
	return strings.Join(parts, "/")
}
