package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/casing"
	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every `env` tag when looking up overrides.
const EnvPrefix = "CAMRELAY_"

// LoadConfig fills opts (a pointer to a flat options struct) with precedence
// CLI flag > environment > TOML file > struct default. Fields map to the file
// through dotted `toml:"section.key"` tags and to the environment through
// `env:"KEY"` tags. The file path is read from a field named Config. A missing
// file is not an error.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: expected pointer to struct, got %T", opts)
	}
	v = v.Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().Visit(func(f *pflag.Flag) {
			changed[f.Name] = true
		})
	}

	var doc map[string]any
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String && f.String() != "" {
		data, err := os.ReadFile(f.String())
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse TOML config %s: %w", f.String(), err)
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to read config %s: %w", f.String(), err)
		}
	}

	for i := range t.NumField() {
		sf := t.Field(i)
		if changed[flagName(sf)] {
			continue
		}
		field := v.Field(i)

		if path := sf.Tag.Get("toml"); path != "" && doc != nil {
			if raw := lookup(doc, path); raw != nil {
				if err := assign(field, raw); err != nil {
					return fmt.Errorf("config key %s: %w", path, err)
				}
			}
		}

		if key := sf.Tag.Get("env"); key != "" {
			if s, ok := os.LookupEnv(EnvPrefix + key); ok && s != "" {
				if err := assignString(field, s); err != nil {
					return fmt.Errorf("environment %s%s: %w", EnvPrefix, key, err)
				}
			}
		}
	}

	return nil
}

// flagName mirrors the humacli naming: a `name` tag wins, otherwise the field
// name in kebab case ("CaptureStaleAfter" -> "capture-stale-after").
func flagName(sf reflect.StructField) string {
	if name := sf.Tag.Get("name"); name != "" {
		return name
	}
	return casing.Kebab(sf.Name)
}

func lookup(doc map[string]any, path string) any {
	node := doc
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			return nil
		}
		node = next
	}
	return node[parts[len(parts)-1]]
}

func assign(field reflect.Value, raw any) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		switch x := raw.(type) {
		case string:
			field.SetString(x)
		case int64:
			field.SetString(strconv.FormatInt(x, 10))
		case []any:
			// Arrays land in string options as a comma-separated list.
			parts := make([]string, 0, len(x))
			for _, it := range x {
				s, ok := it.(string)
				if !ok {
					return fmt.Errorf("want string array element, got %T", it)
				}
				parts = append(parts, s)
			}
			field.SetString(strings.Join(parts, ","))
		default:
			return fmt.Errorf("want string, got %T", raw)
		}
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", raw)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		switch x := raw.(type) {
		case int64:
			field.SetInt(x)
		case string:
			return assignString(field, x)
		default:
			return fmt.Errorf("want integer, got %T", raw)
		}
	case reflect.Float64:
		switch x := raw.(type) {
		case float64:
			field.SetFloat(x)
		case int64:
			field.SetFloat(float64(x))
		default:
			return fmt.Errorf("want number, got %T", raw)
		}
	case reflect.Slice:
		items, ok := raw.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("want string array, got %T", raw)
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, ok := it.(string)
			if !ok {
				return fmt.Errorf("want string array element, got %T", it)
			}
			out = append(out, s)
		}
		field.Set(reflect.ValueOf(out))
	}
	return nil
}

func assignString(field reflect.Value, s string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(s)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
	return nil
}

// Duration parses s, falling back to def when s is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// LoadLoggingModules reads the optional [logging.modules] table, which maps
// module names to levels. Missing file or table yields an empty map.
func LoadLoggingModules(path string) map[string]string {
	modules := make(map[string]string)
	if path == "" {
		return modules
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return modules
	}

	var raw struct {
		Logging struct {
			Modules map[string]string `toml:"modules"`
		} `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return modules
	}
	for k, v := range raw.Logging.Modules {
		modules[k] = v
	}
	return modules
}

// MergeLogging overlays per-module levels onto base. Empty values are ignored.
func MergeLogging(base logging.Config, modules map[string]string) logging.Config {
	if base.Modules == nil {
		base.Modules = make(map[string]string)
	}
	for k, v := range modules {
		if v != "" {
			base.Modules[k] = v
		}
	}
	return base
}
