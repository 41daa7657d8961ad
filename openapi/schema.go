package openapi

import (
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

var timeType = reflect.TypeOf(time.Time{})

// schemaRegistry turns Go values into schemas. Named structs become
// components and are referenced; everything else is inlined.
type schemaRegistry struct {
	names map[reflect.Type]string
}

func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{names: make(map[reflect.Type]string)}
}

func (r *schemaRegistry) ref(example any, components openapi3.Schemas) *openapi3.SchemaRef {
	if example == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return r.fromType(reflect.TypeOf(example), components, map[reflect.Type]bool{})
}

func (r *schemaRegistry) fromType(t reflect.Type, components openapi3.Schemas, visiting map[reflect.Type]bool) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.Pointer:
		inner := r.fromType(t.Elem(), components, visiting)
		if inner.Ref != "" {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{AllOf: openapi3.SchemaRefs{inner}, Nullable: true}}
		}
		inner.Value.Nullable = true
		return inner
	case reflect.String:
		return openapi3.NewStringSchema().NewRef()
	case reflect.Bool:
		return openapi3.NewBoolSchema().NewRef()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return openapi3.NewIntegerSchema().NewRef()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema().WithMin(0).NewRef()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema().NewRef()
	case reflect.Slice, reflect.Array:
		schema := openapi3.NewArraySchema()
		schema.Items = r.fromType(t.Elem(), components, visiting)
		return schema.NewRef()
	case reflect.Map:
		schema := openapi3.NewObjectSchema()
		schema.AdditionalProperties = openapi3.AdditionalProperties{Schema: r.fromType(t.Elem(), components, visiting)}
		return schema.NewRef()
	case reflect.Struct:
		return r.structRef(t, components, visiting)
	default:
		return openapi3.NewObjectSchema().NewRef()
	}
}

func (r *schemaRegistry) structRef(t reflect.Type, components openapi3.Schemas, visiting map[reflect.Type]bool) *openapi3.SchemaRef {
	if t == timeType {
		return openapi3.NewDateTimeSchema().NewRef()
	}
	if t.Name() == "" {
		return r.structSchema(t, components, visiting).NewRef()
	}

	if name, ok := r.names[t]; ok {
		return componentRef(name, components)
	}
	if visiting[t] {
		return openapi3.NewObjectSchema().NewRef()
	}

	name := r.uniqueName(t)
	r.names[t] = name
	visiting[t] = true
	components[name] = r.structSchema(t, components, visiting).NewRef()
	delete(visiting, t)

	return componentRef(name, components)
}

// componentRef points at a registered component and carries its schema so the
// document validates without a separate resolve pass. A type still being
// built (self reference) gets a plain object.
func componentRef(name string, components openapi3.Schemas) *openapi3.SchemaRef {
	component, ok := components[name]
	if !ok || component.Value == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+name, component.Value)
}

func (r *schemaRegistry) uniqueName(t reflect.Type) string {
	taken := func(name string) bool {
		for _, existing := range r.names {
			if existing == name {
				return true
			}
		}
		return false
	}

	name := t.Name()
	if !taken(name) {
		return name
	}
	// same name in another package: qualify with the package
	pkg := t.PkgPath()
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		pkg = pkg[i+1:]
	}
	return strings.ToUpper(pkg[:1]) + pkg[1:] + name
}

func (r *schemaRegistry) structSchema(t reflect.Type, components openapi3.Schemas, visiting map[reflect.Type]bool) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = field.Name
		}

		prop := r.fromType(field.Type, components, visiting)
		if doc, example := field.Tag.Get("doc"), field.Tag.Get("example"); doc != "" || example != "" {
			if prop.Ref != "" {
				prop = &openapi3.SchemaRef{Value: &openapi3.Schema{AllOf: openapi3.SchemaRefs{prop}}}
			}
			if doc != "" {
				prop.Value.Description = doc
			}
			if example != "" {
				prop.Value.Example = example
			}
		}
		schema.Properties[name] = prop

		if !strings.Contains(opts, "omitempty") {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema
}
