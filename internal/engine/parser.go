package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/procflow/internal/domain"
)

// definitionSchema — форма документа определения.
//
// Схема проверяет только структуру (наличие nodes/edges, типы полей);
// смысловые проверки (уникальность, циклы) делает ValidateDefinition.
var definitionSchema = map[string]any{
	"type":     "object",
	"required": []any{"nodes", "edges"},
	"properties": map[string]any{
		"nodes": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":       map[string]any{"type": "string"},
					"type":     map[string]any{"type": "string"},
					"config":   map[string]any{"type": []any{"object", "null"}},
					"on_error": map[string]any{"type": "string"},
				},
			},
		},
		"edges": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from": map[string]any{"type": "string"},
					"to":   map[string]any{"type": "string"},
				},
			},
		},
	},
}

// ParseDefinition разбирает определение из JSON.
//
// Документ сначала проверяется JSON-схемой, затем декодируется.
// Результат НЕ проходит ValidateDefinition — это отдельный шаг.
func ParseDefinition(data []byte) (*domain.WorkflowDefinition, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewValidationError(-1, "", "",
			fmt.Sprintf("invalid JSON: %v", err), ErrInvalidDocument)
	}

	return decodeDocument(doc)
}

// ParseDefinitionYAML разбирает определение из YAML.
func ParseDefinitionYAML(data []byte) (*domain.WorkflowDefinition, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewValidationError(-1, "", "",
			fmt.Sprintf("invalid YAML: %v", err), ErrInvalidDocument)
	}

	return decodeDocument(normalizeYAML(doc))
}

// LoadDefinitionFile читает определение из файла.
// Формат выбирается по расширению: .yaml/.yml — YAML, иначе JSON.
func LoadDefinitionFile(path string) (*domain.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseDefinitionYAML(data)
	default:
		return ParseDefinition(data)
	}
}

// decodeDocument проверяет документ схемой и переводит его в WorkflowDefinition.
func decodeDocument(doc any) (*domain.WorkflowDefinition, error) {
	if err := checkSchema(doc); err != nil {
		return nil, err
	}

	// Документ уже приведён к JSON-совместимым типам, перекодируем через JSON,
	// чтобы числа в config были float64 независимо от исходного формата.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, NewValidationError(-1, "", "",
			fmt.Sprintf("encode document: %v", err), ErrInvalidDocument)
	}

	var def domain.WorkflowDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, NewValidationError(-1, "", "",
			fmt.Sprintf("decode document: %v", err), ErrInvalidDocument)
	}

	return &def, nil
}

func checkSchema(doc any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(definitionSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return NewValidationError(-1, "", "",
			fmt.Sprintf("schema validation: %v", err), ErrInvalidDocument)
	}

	if result.Valid() {
		return nil
	}

	descs := result.Errors()
	messages := make([]string, 0, len(descs))
	for _, desc := range descs {
		messages = append(messages, desc.String())
	}

	sentinel := ErrInvalidDocument
	obj, isObject := doc.(map[string]any)
	if isObject && (obj["nodes"] == nil || obj["edges"] == nil) {
		sentinel = ErrMissingCollection
	}

	field := ""
	if len(descs) > 0 {
		field = descs[0].Field()
	}

	return NewValidationError(-1, field, "", strings.Join(messages, "; "), sentinel)
}

// normalizeYAML приводит результат yaml.v3 к JSON-совместимым типам.
// yaml.v3 декодирует map как map[string]any, но вложенные ключи
// могут быть не строками — такие приводятся через fmt.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
