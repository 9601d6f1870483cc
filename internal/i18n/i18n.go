// Package i18n loads the bot's message catalogs and resolves localized strings.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

// Params are substituted into {name} placeholders.
type Params map[string]any

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	Tf(key string, params Params) string
	Lang() string
}

// catalog maps a language code to its flattened messages.
type catalog map[string]map[string]string

func (c catalog) merge(other catalog) {
	for lang, messages := range other {
		if c[lang] == nil {
			c[lang] = make(map[string]string, len(messages))
		}
		for key, text := range messages {
			c[lang][key] = text
		}
	}
}

// Manager stores all available translations.
type Manager struct {
	translations catalog
	defaultLang  string
}

// Load loads the catalogs embedded in the binary.
func Load(defaultLang string) (*Manager, error) {
	return LoadFS(locales, "locales", defaultLang)
}

// LoadFS loads translations from the YAML files under root in fsys.
// Files are merged in name order, so later files override earlier keys.
func LoadFS(fsys fs.FS, root, defaultLang string) (*Manager, error) {
	translations, err := readCatalogs(fsys, root)
	if err != nil {
		return nil, err
	}

	defaultLang = normalizeLang(defaultLang)
	if defaultLang == "" {
		defaultLang = "en"
	}
	if _, ok := translations[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Manager{translations: translations, defaultLang: defaultLang}, nil
}

// Translator returns a translator for lang, or the default language when lang has no catalog.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	code := normalizeLang(lang)
	if _, ok := m.translations[code]; !ok {
		code = m.defaultLang
	}

	return translator{
		lang:     code,
		messages: m.translations[code],
		fallback: m.translations[m.defaultLang],
	}
}

func (m *Manager) Default() Translator {
	if m == nil {
		return translator{}
	}
	return m.Translator(m.defaultLang)
}

// Languages returns the loaded language codes in sorted order.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	codes := make([]string, 0, len(m.translations))
	for code := range m.translations {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

type translator struct {
	lang     string
	messages map[string]string
	fallback map[string]string
}

func (t translator) Lang() string {
	return t.lang
}

// T returns the message for key, falling back to the default language and then to the key itself.
func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	if text, ok := t.messages[key]; ok && text != "" {
		return text
	}
	if text, ok := t.fallback[key]; ok && text != "" {
		return text
	}
	return key
}

func (t translator) Tf(key string, params Params) string {
	text := t.T(key)
	if len(params) == 0 {
		return text
	}

	pairs := make([]string, 0, len(params)*2)
	for name, value := range params {
		pairs = append(pairs, "{"+name+"}", fmt.Sprint(value))
	}

	return strings.NewReplacer(pairs...).Replace(text)
}

// normalizeLang maps Telegram language codes such as "en-GB" to catalog keys.
func normalizeLang(lang string) string {
	code := strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(code, "-_"); idx > 0 {
		code = code[:idx]
	}
	return code
}

func readCatalogs(fsys fs.FS, root string) (catalog, error) {
	files, err := fs.Glob(fsys, path.Join(root, "*.y*ml"))
	if err != nil {
		return nil, fmt.Errorf("i18n: list %s: %w", root, err)
	}

	out := make(catalog)
	var loaded int
	for _, file := range files {
		ext := strings.ToLower(path.Ext(file))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		parsed, err := readCatalog(fsys, file)
		if err != nil {
			return nil, err
		}
		out.merge(parsed)
		loaded++
	}

	if loaded == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", root)
	}
	return out, nil
}

// readCatalog decodes one file whose top-level keys are language codes.
func readCatalog(fsys fs.FS, file string) (catalog, error) {
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("i18n: read file %s: %w", file, err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("i18n: parse file %s: %w", file, err)
	}

	out := make(catalog, len(doc))
	for lang, node := range doc {
		code := normalizeLang(lang)
		if code == "" {
			continue
		}

		messages := make(map[string]string)
		collect("", &node, messages)
		if len(messages) > 0 {
			out[code] = messages
		}
	}
	return out, nil
}

// collect walks a mapping node and records scalar leaves under dotted keys.
func collect(prefix string, node *yaml.Node, out map[string]string) {
	switch node.Kind {
	case yaml.ScalarNode:
		if prefix != "" {
			out[prefix] = node.Value
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			name := node.Content[i].Value
			if name == "" {
				continue
			}
			if prefix != "" {
				name = prefix + "." + name
			}
			collect(name, node.Content[i+1], out)
		}
	}
}
