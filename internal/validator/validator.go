package validator

// =============================================================================
// CONTRACTS AT THE EDGES
// =============================================================================
//
// Two documents cross the tool boundary: the connection-definition table a
// user writes by hand, and the register manifest other tools read back.
// Both are checked against an embedded CUE schema. A config with a typo in a
// key name fails here, loudly, instead of producing a header that quietly
// lacks a connection.
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

//go:embed config_schema.cue
var configSchemaFS embed.FS

//go:embed manifest_schema.cue
var manifestSchemaFS embed.FS

// schemaValidator holds one compiled schema
type schemaValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

func newSchemaValidator(fs embed.FS, name string) (*schemaValidator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := fs.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema %s: %w", name, err)
	}

	schema := ctx.CompileBytes(schemaBytes, cue.Filename(name))
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, schema.Err())
	}

	return &schemaValidator{ctx: ctx, schema: schema}, nil
}

func (v *schemaValidator) definition(path string) (cue.Value, error) {
	def := v.schema.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", path, def.Err())
	}
	return def, nil
}

func (v *schemaValidator) validateJSON(jsonBytes []byte, path string) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	def, err := v.definition(path)
	if err != nil {
		return err
	}

	unified := def.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s schema validation failed: %w", path, err)
	}

	return nil
}

func (v *schemaValidator) validate(data interface{}, path string) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.validateJSON(jsonBytes, path)
}

// ConfigValidator checks connection-definition tables against #Config
type ConfigValidator struct {
	v *schemaValidator
}

// NewConfigValidator creates a validator with the embedded config schema
func NewConfigValidator() (*ConfigValidator, error) {
	v, err := newSchemaValidator(configSchemaFS, "config_schema.cue")
	if err != nil {
		return nil, err
	}
	return &ConfigValidator{v: v}, nil
}

// Validate checks that data, marshaled to JSON, conforms to #Config
func (c *ConfigValidator) Validate(data interface{}) error {
	return c.v.validate(data, "#Config")
}

// ValidateJSON validates JSON bytes directly against #Config
func (c *ConfigValidator) ValidateJSON(jsonBytes []byte) error {
	return c.v.validateJSON(jsonBytes, "#Config")
}

// DecodeCUE compiles a CUE configuration source, unifies it with #Config and
// decodes the result into out.
func (c *ConfigValidator) DecodeCUE(src []byte, filename string, out interface{}) error {
	value := c.v.ctx.CompileBytes(src, cue.Filename(filename))
	if value.Err() != nil {
		return fmt.Errorf("compiling %s: %w", filename, value.Err())
	}
	return c.decode(value, filename, out)
}

// DecodeYAML checks a YAML document as written, so keys the Go types would
// drop still fail the closed #Config definition.
func (c *ConfigValidator) DecodeYAML(src []byte, filename string, out interface{}) error {
	f, err := yaml.Extract(filename, src)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", filename, err)
	}
	value := c.v.ctx.BuildFile(f)
	if value.Err() != nil {
		return fmt.Errorf("compiling %s: %w", filename, value.Err())
	}
	return c.decode(value, filename, out)
}

func (c *ConfigValidator) decode(value cue.Value, filename string, out interface{}) error {
	def, err := c.v.definition("#Config")
	if err != nil {
		return err
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("#Config schema validation failed: %w", err)
	}

	if err := unified.Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", filename, err)
	}
	return nil
}

// ManifestValidator checks register manifests and deltas
type ManifestValidator struct {
	v *schemaValidator
}

// NewManifestValidator creates a validator with the embedded manifest schema
func NewManifestValidator() (*ManifestValidator, error) {
	v, err := newSchemaValidator(manifestSchemaFS, "manifest_schema.cue")
	if err != nil {
		return nil, err
	}
	return &ManifestValidator{v: v}, nil
}

// Validate checks a manifest against #Manifest
func (m *ManifestValidator) Validate(data interface{}) error {
	return m.v.validate(data, "#Manifest")
}

// ValidateJSON validates manifest JSON bytes
func (m *ManifestValidator) ValidateJSON(jsonBytes []byte) error {
	return m.v.validateJSON(jsonBytes, "#Manifest")
}

// ValidateDelta checks a manifest delta against #Delta
func (m *ManifestValidator) ValidateDelta(data interface{}) error {
	return m.v.validate(data, "#Delta")
}
