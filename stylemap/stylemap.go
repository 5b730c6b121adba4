// Package stylemap loads and merges the style mapping files which drive
// paragraph and run style translation to output tags.
package stylemap

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

//go:embed styles.json
var defaultStyles []byte

// Entry is a single style mapping. A string value in the source JSON becomes
// a tag spec (`p` or `p class="quote"`), an object value contributes a CSS
// rule to the merged stylesheet.
type Entry struct {
	Tag string
	CSS string
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Tag = s
		return nil
	}
	var obj struct {
		Tag string `json:"tag"`
		CSS string `json:"css"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("style entry must be a tag string or an object: %w", err)
	}
	e.Tag = obj.Tag
	e.CSS = obj.CSS
	return nil
}

// Map is the merged style mapping. Keys are style names exactly as authored
// in the source document, lookups are case-sensitive by contract.
type Map struct {
	Paragraph map[string]Entry
	Run       map[string]Entry
	Character map[string]Entry
	Classes   map[string]Entry
}

func New() *Map {
	return &Map{
		Paragraph: map[string]Entry{},
		Run:       map[string]Entry{},
		Character: map[string]Entry{},
		Classes:   map[string]Entry{},
	}
}

type fileLayout struct {
	Paragraph map[string]Entry `json:"paragraph_styles"`
	Run       map[string]Entry `json:"run_styles"`
	Character map[string]Entry `json:"character_styles"`
	Classes   map[string]Entry `json:"css_classes"`
}

// MergeJSON superimposes one mapping layer, later layers win per key within
// each category.
func (m *Map) MergeJSON(data []byte) error {
	var layer fileLayout
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&layer); err != nil {
		return fmt.Errorf("unable to decode style map: %w", err)
	}
	for k, v := range layer.Paragraph {
		m.Paragraph[k] = v
	}
	for k, v := range layer.Run {
		m.Run[k] = v
	}
	for k, v := range layer.Character {
		m.Character[k] = v
	}
	for k, v := range layer.Classes {
		m.Classes[k] = v
	}
	return nil
}

// Load builds the effective style map: embedded defaults, then styles.json
// beside the source document, then styles.json in the working directory, then
// an explicitly configured map. Identical paths are loaded once, a broken
// layer is skipped with a warning, the loader itself never fails.
func Load(inputPath, explicitPath string, log *zap.Logger) *Map {
	m := New()
	if err := m.MergeJSON(defaultStyles); err != nil {
		// embedded map is part of the program, it cannot be broken
		panic(fmt.Sprintf("embedded style map is invalid: %v", err))
	}

	var layers []string
	if inputPath != "" {
		layers = append(layers, filepath.Join(filepath.Dir(inputPath), "styles.json"))
	}
	if cwd, err := os.Getwd(); err == nil {
		layers = append(layers, filepath.Join(cwd, "styles.json"))
	}
	if explicitPath != "" {
		layers = append(layers, explicitPath)
	}

	seen := map[string]bool{}
	for _, path := range layers {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn("Unable to read style map layer, skipping", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		if err := m.MergeJSON(data); err != nil {
			log.Warn("Malformed style map layer, skipping", zap.String("path", path), zap.Error(err))
			continue
		}
		log.Debug("Merged style map layer", zap.String("path", path))
	}
	return m
}

// ParagraphTag resolves a paragraph style name to its output tag spec.
func (m *Map) ParagraphTag(styleName string) (string, bool) {
	e, ok := m.Paragraph[styleName]
	if !ok || e.Tag == "" {
		return "", false
	}
	return e.Tag, true
}

// RunTag resolves a run or character style name to its output tag spec.
func (m *Map) RunTag(styleName string) (string, bool) {
	if e, ok := m.Run[styleName]; ok && e.Tag != "" {
		return e.Tag, true
	}
	if e, ok := m.Character[styleName]; ok && e.Tag != "" {
		return e.Tag, true
	}
	return "", false
}

// CSS returns the stylesheet fragment contributed by all mapping layers, in
// stable order.
func (m *Map) CSS() string {
	var rules []string
	for _, cat := range []map[string]Entry{m.Paragraph, m.Run, m.Character, m.Classes} {
		for _, e := range cat {
			if e.CSS != "" {
				rules = append(rules, strings.TrimSpace(e.CSS))
			}
		}
	}
	sort.Strings(rules)
	return strings.Join(rules, "\n")
}

// SplitTagSpec breaks a tag spec into the element name and the attribute
// remainder, `p class="quote"` becomes ("p", ` class="quote"`).
func SplitTagSpec(spec string) (name, attrs string) {
	spec = strings.TrimSpace(spec)
	if i := strings.IndexByte(spec, ' '); i >= 0 {
		return spec[:i], " " + strings.TrimSpace(spec[i+1:])
	}
	return spec, ""
}
