package confloader

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix.
const DefaultEnvPrefix = "PAIRMESH_"

// EnvSeparator separates nesting levels in environment variable names.
// A single underscore stays part of the key.
const EnvSeparator = "__"

// Source names a configuration layer.
type Source string

const (
	SourceDefault  Source = "default"
	SourceFile     Source = "file"
	SourceEnv      Source = "env"
	SourceOverride Source = "override"
)

// Loader merges a YAML file, environment variables and overrides on top
// of the defaults already in the target struct.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
	origins   map[string]Source
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file to read.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides sets dotted keys applied after every other source.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) { l.overrides = values }
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		origins:   make(map[string]Source),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads file, then environment, then overrides, and unmarshals the
// result into target. Fields no source sets keep their values. A key in
// the file that matches no field of target is an error; environment
// variables that match no field are skipped.
func (l *Loader) Load(target any) error {
	known := fieldPaths(reflect.TypeOf(target), "")

	if l.filePath != "" {
		if err := l.merge(SourceFile, file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	envProvider := env.Provider(l.envPrefix, ".", func(s string) string {
		key := EnvKey(l.envPrefix, s)
		if !accepts(known, key, false) {
			return ""
		}
		return key
	})
	if err := l.merge(SourceEnv, envProvider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := l.merge(SourceOverride, mapProvider(l.overrides), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if unknown := l.unknownKeys(known, SourceFile); len(unknown) > 0 {
		return fmt.Errorf("unknown configuration keys in %s: %s", l.filePath, strings.Join(unknown, ", "))
	}

	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// merge loads one source into its own layer, records where each key
// came from, then folds the layer into the result.
func (l *Loader) merge(src Source, p koanf.Provider, parser koanf.Parser) error {
	layer := koanf.New(".")
	if err := layer.Load(p, parser); err != nil {
		return err
	}
	for _, key := range layer.Keys() {
		l.origins[key] = src
	}
	return l.k.Merge(layer)
}

// Origin reports which source set key. Keys no source set are
// SourceDefault.
func (l *Loader) Origin(key string) Source {
	if src, ok := l.origins[key]; ok {
		return src
	}
	return SourceDefault
}

// Keys returns every key set by a source, sorted.
func (l *Loader) Keys() []string {
	keys := make([]string, 0, len(l.origins))
	for k := range l.origins {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvKey maps an environment variable name to a config key:
// PAIRMESH_SERVER__HTTP__ADDRESS becomes server.http.address.
func EnvKey(prefix, name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, prefix))
	return strings.ReplaceAll(s, EnvSeparator, ".")
}

// unknownKeys lists keys from src that no known path accepts.
func (l *Loader) unknownKeys(known map[string]bool, src Source) []string {
	var unknown []string
	for _, key := range l.Keys() {
		if l.origins[key] != src {
			continue
		}
		if !accepts(known, key, true) {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

// accepts reports whether key is a known leaf or lies under a known
// map-typed field. With sections, an empty section above known leaves
// is accepted too.
func accepts(known map[string]bool, key string, sections bool) bool {
	if key == "" {
		return false
	}
	if _, ok := known[key]; ok {
		return true
	}
	if sections {
		for p := range known {
			if strings.HasPrefix(p, key+".") {
				return true
			}
		}
	}
	for i := strings.LastIndex(key, "."); i > 0; i = strings.LastIndex(key[:i], ".") {
		if isMap, ok := known[key[:i]]; ok && isMap {
			return true
		}
	}
	return false
}

var durationType = reflect.TypeOf(time.Duration(0))

// fieldPaths maps every leaf path of t to whether it is a map.
func fieldPaths(t reflect.Type, prefix string) map[string]bool {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := make(map[string]bool)
	if t == nil || t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch {
		case ft.Kind() == reflect.Struct && ft != durationType:
			for p, isMap := range fieldPaths(ft, path) {
				out[p] = isMap
			}
		case ft.Kind() == reflect.Map:
			out[path] = true
		default:
			out[path] = false
		}
	}
	return out
}
