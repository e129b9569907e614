package main

import (
	"bytes"
	"path"
	"strings"

	"github.com/bsoera/econ"
	"github.com/santhosh-tekuri/jsonschema/v5"

	goccy "github.com/goccy/go-json"
)

const stringList = `{"type": "array", "items": {"type": "string"}}`

const playerSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"un": {"type": "string"},
		"upcodes": ` + stringList + `,
		"spoints": {"type": "integer"},
		"items": ` + stringList + `,
		"equipped": ` + stringList + `,
		"tag": {"type": "boolean"},
		"lang": {"type": "string"},
		"chaos": {"type": "integer", "minimum": 0},
		"luck": {"type": "integer", "minimum": 0},
		"charge": {"type": "integer", "minimum": 0},
		"allianceidref": {"type": "string"},
		"alliancetag": {"type": "boolean"},
		"toptag": {"type": "boolean"},
		"leaguetag": {"type": "boolean"},
		"cstmtext": {"type": "string"},
		"cstmcolor": {"type": "array", "items": {"type": "number", "minimum": 0, "maximum": 1}, "minItems": 4, "maxItems": 4}
	}
}`

const allianceSchema = `{
	"type": "object",
	"required": ["name", "members"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"members": {
			"type": "object",
			"additionalProperties": {"enum": ["member", "recruiter", "co-owner", "owner"]}
		},
		"public": {"type": "boolean"},
		"invref": {"type": "string"}
	}
}`

const inviteSchema = `{
	"type": "object",
	"required": ["allianceid"],
	"properties": {
		"allianceid": {"type": "string"},
		"uses": {"type": "integer", "minimum": 0}
	}
}`

const scoresSchema = `{
	"type": "object",
	"additionalProperties": {"type": "number"}
}`

const leaguesSchema = `{
	"type": "object",
	"required": ["end", "leagues"],
	"properties": {
		"end": {"type": "number"},
		"leagues": {"type": "array", "items": ` + scoresSchema + `}
	}
}`

const shopSchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"additionalProperties": {
			"type": "object",
			"required": ["price"],
			"properties": {"price": {"type": "integer", "minimum": 0}}
		}
	}
}`

const serverConfigSchema = `{
	"type": "object",
	"properties": {
		"allow_chaotic_commands": {"type": "boolean"},
		"negative_scores": {"type": "boolean"}
	}
}`

// schemas picks the schema of a document by its path relative to the data root.
type schemas struct {
	byDir  map[string]*jsonschema.Schema
	byFile map[string]*jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	compile := func(name string, src string) (*jsonschema.Schema, error) {
		s, err := jsonschema.CompileString(name+".json", src)
		return s, econ.WithStack(err)
	}
	result := &schemas{
		byDir:  map[string]*jsonschema.Schema{},
		byFile: map[string]*jsonschema.Schema{},
	}
	for dir, src := range map[string]string{
		"gstats":           playerSchema,
		"galliances":       allianceSchema,
		"gallianceinvites": inviteSchema,
	} {
		s, err := compile(dir, src)
		if err != nil {
			return nil, err
		}
		result.byDir[dir] = s
	}
	for file, src := range map[string]string{
		"gleagues.json":       leaguesSchema,
		"gshop.json":          shopSchema,
		"galliancenames.json": stringList,
		"tops.json":           scoresSchema,
		"config.json":         serverConfigSchema,
	} {
		s, err := compile(strings.TrimSuffix(file, ".json"), src)
		if err != nil {
			return nil, err
		}
		result.byFile[file] = s
	}
	return result, nil
}

// validate checks content against the schema for rel. Documents without a schema only need to be JSON.
func (s *schemas) validate(rel string, content []byte) error {
	// The validator wants plain maps, slices and json.Number.
	var doc any
	dec := goccy.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return econ.WithStack(err)
	}
	schema := s.byDir[path.Dir(rel)]
	if schema == nil && (path.Dir(rel) == "." || strings.HasPrefix(rel, "superdata/")) {
		schema = s.byFile[path.Base(rel)]
	}
	if schema == nil {
		return nil
	}
	return schema.Validate(doc)
}
