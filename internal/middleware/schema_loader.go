package middleware

import (
	_ "embed"
	"encoding/json"
	"fmt"

	contextutils "complaintdesk/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v2"
)

//go:embed schemas/requests.yaml
var requestSchemasYAML []byte

// SchemaLoader holds compiled JSON schemas for request validation
type SchemaLoader struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaLoader compiles the embedded request schemas. It panics on a
// malformed schema file since that is a build defect, not a runtime
// condition.
func NewSchemaLoader() *SchemaLoader {
	sl := &SchemaLoader{schemas: make(map[string]*gojsonschema.Schema)}
	if err := sl.loadEmbeddedSchemas(); err != nil {
		panic(fmt.Sprintf("failed to load request schemas: %v", err))
	}
	return sl
}

func (sl *SchemaLoader) loadEmbeddedSchemas() error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(requestSchemasYAML, &doc); err != nil {
		return contextutils.WrapError(err, "failed to parse schema file as YAML")
	}

	schemas, ok := doc["schemas"].(map[interface{}]interface{})
	if !ok {
		return contextutils.ErrorWithContextf("no schemas section found in schema file")
	}

	for name, schemaData := range schemas {
		nameStr, ok := name.(string)
		if !ok {
			return contextutils.ErrorWithContextf("schema name is not a string: %v", name)
		}
		converted, err := convertToJSONCompatible(schemaData)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to convert schema %s", nameStr)
		}
		raw, err := json.Marshal(converted)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to marshal schema %s", nameStr)
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to compile schema %s", nameStr)
		}
		sl.schemas[nameStr] = compiled
	}
	return nil
}

// ValidateData validates data against a named schema
func (sl *SchemaLoader) ValidateData(data interface{}, schemaName string) error {
	schema, exists := sl.schemas[schemaName]
	if !exists {
		return contextutils.ErrorWithContextf("schema not found: %s", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return contextutils.WrapError(err, "schema validation error")
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return contextutils.NewAppError(
			contextutils.ErrorCodeValidationFailed,
			contextutils.SeverityWarn,
			"request body failed validation",
			fmt.Sprintf("%v", details),
		)
	}
	return nil
}

// HasSchema reports whether a schema with the given name is loaded
func (sl *SchemaLoader) HasSchema(schemaName string) bool {
	_, exists := sl.schemas[schemaName]
	return exists
}

// convertToJSONCompatible converts YAML-decoded values (which use
// map[interface{}]interface{}) into JSON-marshalable values.
func convertToJSONCompatible(data interface{}) (interface{}, error) {
	switch v := data.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for key, value := range v {
			keyStr, ok := key.(string)
			if !ok {
				return nil, contextutils.ErrorWithContextf("map key is not a string: %v", key)
			}
			converted, err := convertToJSONCompatible(value)
			if err != nil {
				return nil, err
			}
			m[keyStr] = converted
		}
		return m, nil
	case []interface{}:
		list := make([]interface{}, len(v))
		for i, item := range v {
			converted, err := convertToJSONCompatible(item)
			if err != nil {
				return nil, err
			}
			list[i] = converted
		}
		return list, nil
	default:
		return data, nil
	}
}
