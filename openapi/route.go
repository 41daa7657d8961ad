package openapi

import (
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

type RouteBuilder struct {
	openapi   *OpenAPI
	method    string
	path      string
	operation *openapi3.Operation
}

func (rb *RouteBuilder) Summary(summary string) *RouteBuilder {
	rb.operation.Summary = summary
	return rb
}

func (rb *RouteBuilder) Description(description string) *RouteBuilder {
	rb.operation.Description = description
	return rb
}

func (rb *RouteBuilder) OperationID(id string) *RouteBuilder {
	rb.operation.OperationID = id
	return rb
}

func (rb *RouteBuilder) Tags(tags ...string) *RouteBuilder {
	rb.operation.Tags = append(rb.operation.Tags, tags...)
	return rb
}

// Body documents a required JSON request body shaped like example.
func (rb *RouteBuilder) Body(example any, description string) *RouteBuilder {
	rb.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithDescription(description).
			WithRequired(true).
			WithJSONSchemaRef(rb.openapi.schemaFor(example)),
	}
	return rb
}

func (rb *RouteBuilder) Response(statusCode int, example any, description string) *RouteBuilder {
	response := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		response.Content = openapi3.NewContentWithJSONSchemaRef(rb.openapi.schemaFor(example))
	}
	rb.operation.Responses.Set(strconv.Itoa(statusCode), &openapi3.ResponseRef{Value: response})
	return rb
}

// ResponseWithHeaders is Response plus documented string headers.
func (rb *RouteBuilder) ResponseWithHeaders(statusCode int, example any, description string, headers map[string]string) *RouteBuilder {
	rb.Response(statusCode, example, description)

	response := rb.operation.Responses.Value(strconv.Itoa(statusCode)).Value
	response.Headers = make(openapi3.Headers, len(headers))
	for name, desc := range headers {
		response.Headers[name] = &openapi3.HeaderRef{
			Value: &openapi3.Header{
				Parameter: openapi3.Parameter{
					Description: desc,
					Schema:      openapi3.NewStringSchema().NewRef(),
				},
			},
		}
	}
	return rb
}

func (rb *RouteBuilder) Security(schemes ...string) *RouteBuilder {
	if rb.operation.Security == nil {
		rb.operation.Security = openapi3.NewSecurityRequirements()
	}
	for _, scheme := range schemes {
		rb.operation.Security.With(openapi3.NewSecurityRequirement().Authenticate(scheme))
	}
	return rb
}

func (rb *RouteBuilder) Build() {
	rb.openapi.addOperation(rb.method, rb.path, rb.operation)
}
