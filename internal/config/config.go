// Package config loads the giftbuyer process configuration.
//
// A config file may pull in other files through a top-level include list.
// Included files are merged first, in the listed order, and the including
// file is merged last so it wins. Environment variables prefixed with
// GIFTBUYER_ override both. Defaults are filled in only for keys that no
// file or variable set, so an explicit zero survives.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix lets environment variables override file values, e.g.
// GIFTBUYER_SOURCE_BOT_TOKEN for source.bot_token.
const EnvPrefix = "GIFTBUYER"

const includeKey = "include"

// Load reads path and everything it includes, fills defaults and validates.
func Load(path string) (*Config, error) {
	files, err := includeOrder(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	explicit := make(keySet)
	markSetKeys("", v.AllSettings(), explicit)
	cfg.applyDefaults(explicit)
	cfg.resolvePaths(filepath.Dir(files[len(files)-1]))
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePaths anchors a relative invoices file at the directory of the
// top-level config file.
func (c *Config) resolvePaths(dir string) {
	p := strings.TrimSpace(c.Buyer.InvoicesPath)
	if p == "" || filepath.IsAbs(p) {
		return
	}
	c.Buyer.InvoicesPath = filepath.Join(dir, p)
}

func mergeFile(v *viper.Viper, path string) error {
	part, err := readFile(path)
	if err != nil {
		return err
	}
	settings := part.AllSettings()
	delete(settings, includeKey)
	return v.MergeConfigMap(settings)
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

// includeOrder returns the files to merge, dependencies first. A file
// reached twice is merged once; a file that includes itself is an error.
func includeOrder(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &includeWalker{done: make(map[string]bool), active: make(map[string]bool)}
	if err := w.visit(root); err != nil {
		return nil, err
	}
	return w.order, nil
}

type includeWalker struct {
	done   map[string]bool
	active map[string]bool
	order  []string
}

func (w *includeWalker) visit(path string) error {
	path = filepath.Clean(path)
	switch {
	case w.active[path]:
		return fmt.Errorf("include cycle detected: %s", path)
	case w.done[path]:
		return nil
	}
	w.active[path] = true
	includes, err := includeList(path)
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := w.visit(inc); err != nil {
			return err
		}
	}
	delete(w.active, path)
	w.done[path] = true
	w.order = append(w.order, path)
	return nil
}

func includeList(path string) ([]string, error) {
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var items []any
	switch raw := v.Get(includeKey).(type) {
	case nil:
		return nil, nil
	case []any:
		items = raw
	case []string:
		for _, s := range raw {
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// markSetKeys records the dotted path of every value present in settings.
// A list marks its own path as well.
func markSetKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, child := range val {
			if key, ok := joinKey(prefix, k); ok {
				markSetKeys(key, child, dest)
			}
		}
	case map[any]any:
		for k, child := range val {
			name, isString := k.(string)
			if !isString {
				continue
			}
			if key, ok := joinKey(prefix, name); ok {
				markSetKeys(key, child, dest)
			}
		}
	case []any:
		dest.mark(prefix)
		for _, item := range val {
			markSetKeys(prefix, item, dest)
		}
	default:
		dest.mark(prefix)
	}
}

func joinKey(prefix, name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}
	if prefix == "" {
		return name, true
	}
	return prefix + "." + name, true
}
