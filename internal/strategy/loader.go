package strategy

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"polyshadow/internal/logger"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.schema.json
var entrySchemaJSON string

// FileConfig 映射策略目录文件。
type FileConfig struct {
	Strategies []Config `yaml:"strategies"`
}

// LoadCatalog 读取 YAML 策略目录：viper 读取并做 schema 校验，yaml.v3 严格解码。
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy catalog requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy catalog failed: %w", err)
	}
	schema, err := compileSchema(entrySchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile strategy schema failed: %w", err)
	}
	entries, ok := v.Get("strategies").([]any)
	if !ok || len(entries) == 0 {
		return nil, fmt.Errorf("strategy catalog %s has no strategies", filepath.Base(path))
	}
	for i, entry := range entries {
		doc, err := jsonDocument(entry)
		if err != nil {
			return nil, fmt.Errorf("strategy #%d: %w", i, err)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("strategy #%d invalid: %w", i, err)
		}
	}

	file, err := readCatalogFile(path)
	if err != nil {
		return nil, err
	}
	cat, err := NewCatalog(file.Strategies...)
	if err != nil {
		return nil, err
	}
	logger.Infof("Strategy catalog loaded %d strategies from %s", cat.Len(), filepath.Base(path))
	return cat, nil
}

func readCatalogFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read strategy catalog failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse strategy catalog failed: %w", err)
	}
	return cfg, nil
}

func compileSchema(raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("strategy.json", strings.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile("strategy.json")
}

// jsonDocument normalises a YAML-decoded value into the plain JSON types the
// validator expects.
func jsonDocument(v any) (any, error) {
	raw, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalizeYAML(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fmt.Sprint(k)] = normalizeYAML(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeYAML(child)
		}
		return out
	default:
		return val
	}
}
