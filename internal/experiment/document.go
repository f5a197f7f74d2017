package experiment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"featprep/internal/services"
)

// Well-known document keys.
const (
	KeyStudyPath   = "data.study.path"
	KeyStudyQuery  = "data.study.query"
	KeyCacheFolder = "data.text_feature.infra.folder"
	KeyMemoryGB    = "infra.mem_gb"
)

var featureKinds = []string{"text_feature", "video_feature", "audio_feature"}

// Document is a nested experiment configuration. Nested sections are
// Documents; leaves are scalars or slices.
type Document map[string]any

// DefaultDocument returns the base configuration derived from the dataset and
// cache locations.
func DefaultDocument(datasetPath, cachePath string) Document {
	data := Document{
		"study": Document{"path": datasetPath},
	}
	for _, kind := range featureKinds {
		data[kind] = Document{"infra": Document{"folder": cachePath}}
	}
	return Document{"data": data}
}

// ExtractionOverride is the update that turns a training configuration into
// a feature-caching run: no epochs, a single local node with one accelerator.
func ExtractionOverride() Document {
	return Document{
		"n_epochs": 0,
		"infra": Document{
			"cluster":       "local",
			"gpus_per_node": 1,
			"mem_gb":        64,
			"timeout_min":   720,
		},
		"data": Document{
			"num_workers": 4,
		},
	}
}

// Merge deep-merges layers left to right into a new Document. Sections merge
// key by key; any other value replaces what was there. Dotted keys such as
// "data.study.query" address nested sections. Inputs are not modified.
func Merge(layers ...Document) Document {
	out := Document{}
	for _, layer := range layers {
		for key, value := range layer {
			out.set(splitKey(key), value)
		}
	}
	return out
}

func (d Document) set(path []string, value any) {
	if len(path) == 0 {
		return
	}
	if len(path) > 1 {
		child, ok := d[path[0]].(Document)
		if !ok {
			child = Document{}
			d[path[0]] = child
		}
		child.set(path[1:], value)
		return
	}
	key := path[0]
	if incoming, ok := normalizeValue(value).(Document); ok {
		existing, ok := d[key].(Document)
		if !ok {
			existing = Document{}
			d[key] = existing
		}
		for k, v := range incoming {
			existing.set(splitKey(k), v)
		}
		return
	}
	d[key] = cloneValue(normalizeValue(value))
}

func splitKey(key string) []string {
	parts := strings.Split(key, ".")
	out := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizeValue converts decoder-specific map types into Documents.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case Document:
		return v
	case map[string]any:
		return Document(v)
	case map[any]any:
		doc := make(Document, len(v))
		for key, val := range v {
			doc[fmt.Sprint(key)] = val
		}
		return doc
	default:
		return value
	}
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case Document:
		out := make(Document, len(v))
		for key, val := range v {
			out[key] = cloneValue(normalizeValue(val))
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = cloneValue(normalizeValue(val))
		}
		return out
	default:
		return value
	}
}

// Lookup resolves a dotted key.
func (d Document) Lookup(key string) (any, bool) {
	path := splitKey(key)
	if len(path) == 0 {
		return nil, false
	}
	var current any = d
	for _, part := range path {
		section, ok := normalizeValue(current).(Document)
		if !ok {
			return nil, false
		}
		current, ok = section[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String resolves a dotted key to its string form, or "" when absent.
func (d Document) String(key string) string {
	value, ok := d.Lookup(key)
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Float resolves a dotted key holding a number.
func (d Document) Float(key string) (float64, bool) {
	value, ok := d.Lookup(key)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Keys returns the top-level keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Validate reports documents the collaborator cannot start from.
func (d Document) Validate() error {
	for _, key := range []string{KeyStudyPath, KeyCacheFolder} {
		if strings.TrimSpace(d.String(key)) == "" {
			return fmt.Errorf("%w: %s is empty", services.ErrConfiguration, key)
		}
	}
	return nil
}

// LoadOverride reads a user override document. The format follows the file
// extension: .toml, .yaml/.yml or .json.
func LoadOverride(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read override %s: %w", services.ErrConfiguration, path, err)
	}
	raw := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		err = decoder.Decode(&raw)
	default:
		return nil, fmt.Errorf("%w: override %s: unsupported format %q (want .toml, .yaml or .json)",
			services.ErrConfiguration, path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse override %s: %w", services.ErrConfiguration, path, err)
	}
	return Merge(Document(raw)), nil
}
