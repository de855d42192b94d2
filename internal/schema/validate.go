package schema

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator checks a PipelineContext at each stage boundary: the shared
// shape first, then the fields that stage is required to have produced.
type Validator struct {
	base   *jsonschema.Schema
	stages map[domain.Stage]*jsonschema.Schema
}

var stageFiles = map[domain.Stage]string{
	domain.StageFetchEvents:  "schemas/fetch-events.schema.json",
	domain.StageFetchWeather: "schemas/fetch-weather.schema.json",
	domain.StageSummarize:    "schemas/summarize.schema.json",
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	base, err := loadSchema("schemas/context.schema.json")
	if err != nil {
		return nil, err
	}
	v := &Validator{base: base, stages: make(map[domain.Stage]*jsonschema.Schema, len(stageFiles))}
	for stage, path := range stageFiles {
		compiled, err := loadSchema(path)
		if err != nil {
			return nil, err
		}
		v.stages[stage] = compiled
	}
	return v, nil
}

// Validate reports a validation error when ctx does not satisfy the
// contract expected after stage has completed.
func (v *Validator) Validate(stage domain.Stage, ctx domain.PipelineContext) error {
	data, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	if err := validateJSON(v.base, data); err != nil {
		return apperr.Wrap(err, apperr.KindValidation, "context_invalid")
	}
	if compiled, ok := v.stages[stage]; ok {
		if err := validateJSON(compiled, data); err != nil {
			return apperr.Wrap(err, apperr.KindValidation, "context_invalid")
		}
	}
	return nil
}

func loadSchema(path string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	compiled, err := compiler.Compile(data)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	return compiled, nil
}

func validateJSON(compiled *jsonschema.Schema, data []byte) error {
	result := compiled.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
