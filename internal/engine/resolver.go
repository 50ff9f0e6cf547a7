package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// templatePattern — выражение {{ path }}; пробелы вокруг path обрезаются.
var templatePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Lookup — источник значений для резолвера.
//
// Пространства имён проверяются по наличию ключа:
// сначала outputs узлов, затем глобальные переменные.
type Lookup interface {
	NodeOutput(id string) (any, bool)
	GlobalVar(name string) (any, bool)
}

// Resolve подставляет все выражения {{path}} в строку.
//
// Правила:
//   - первый сегмент ищется среди outputs узлов, затем среди глобальных переменных;
//     если не найден ни там, ни там — выражение остаётся как есть (вместе со скобками)
//   - следующие сегменты спускаются по вложенным map; сегмент на не-map значении
//     оставляет выражение как есть
//   - nil или отсутствующий ключ во вложенной map дают пустую строку
//   - иначе подставляется строковое представление значения (см. Stringify)
//
// Строка без выражений возвращается без изменений.
func Resolve(tmpl string, src Lookup) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return templatePattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])

		value, ok := lookupPath(path, src)
		if !ok {
			return match
		}
		if value == nil {
			return ""
		}
		return Stringify(value)
	})
}

// lookupPath разрешает путь "a.b.c". ok=false — выражение остаётся нетронутым.
func lookupPath(path string, src Lookup) (any, bool) {
	if path == "" {
		return nil, false
	}

	segments := strings.Split(path, ".")
	head := segments[0]

	current, ok := src.NodeOutput(head)
	if !ok {
		current, ok = src.GlobalVar(head)
		if !ok {
			return nil, false
		}
	}

	for _, seg := range segments[1:] {
		m, isMap := asMap(current)
		if !isMap {
			return nil, false
		}
		current = m[seg]
	}

	return current, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// ResolveValue разрешает шаблоны в произвольном значении.
//
// Строки резолвятся, map и slice обходятся рекурсивно с созданием копий,
// остальные значения возвращаются как есть.
func ResolveValue(value any, src Lookup) any {
	switch v := value.(type) {
	case string:
		return Resolve(v, src)

	case map[string]any:
		return ResolveMap(v, src)

	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = ResolveValue(item, src)
		}
		return result

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, item := range v {
			result[key] = Resolve(item, src)
		}
		return result

	case []string:
		result := make([]string, len(v))
		for i, item := range v {
			result[i] = Resolve(item, src)
		}
		return result

	default:
		return value
	}
}

// ResolveMap возвращает новую map с разрешёнными строковыми листьями.
//
// Исходная map не модифицируется, поэтому одно определение можно
// переиспользовать в нескольких executions.
func ResolveMap(m map[string]any, src Lookup) map[string]any {
	if m == nil {
		return make(map[string]any)
	}

	result := make(map[string]any, len(m))
	for key, val := range m {
		result[key] = ResolveValue(val, src)
	}
	return result
}

// Stringify возвращает строковую форму значения для подстановки.
//
// Числа — в кратчайшей десятичной записи (5, 2.5),
// bool — true/false, map и slice — компактный JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", v)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case map[string]any, []any, map[string]string, []string:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}
