// Package manifest loads and validates desired-state manifests.
//
// A manifest is a JSON document (comments and trailing commas accepted)
// describing package sources, packages, runtimes, environment variables and
// dotfiles for one platform target. Loading is fail-fast: a manifest that
// cannot be read, parsed or validated is rejected before anything runs.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"

	"github.com/bootkit/bootkit/pkg/engine"
)

var validate = validator.New()

// document is the on-disk manifest layout.
type document struct {
	lists

	Target         string               `json:"target"`
	PackageManager string               `json:"packageManager"`
	Environment    map[string]string    `json:"environment"`
	Dotfiles       *engine.DotfilesSpec `json:"dotfiles"`
	Optional       *lists               `json:"optional"`
}

type lists struct {
	ScoopBuckets      []json.RawMessage `json:"scoopBuckets"`
	SystemPackages    []json.RawMessage `json:"systemPackages"`
	Packages          []json.RawMessage `json:"packages"`
	ScoopTools        []json.RawMessage `json:"scoopTools"`
	WingetPackages    []json.RawMessage `json:"wingetPackages"`
	PowershellModules []json.RawMessage `json:"powershellModules"`
	Fonts             []json.RawMessage `json:"fonts"`
	MiseRuntimes      []json.RawMessage `json:"miseRuntimes"`
}

// item is one list element after normalizing the string and object forms.
type item struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// Load reads, parses and validates the manifest at path.
func Load(path string) (*engine.Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, engine.NewManifestNotFoundError(path, err)
	}
	if err != nil {
		return nil, engine.NewManifestUnreadableError(path, err)
	}
	return Parse(path, data)
}

// Parse validates manifest bytes. path is used for error reporting and the
// default target name.
func Parse(path string, data []byte) (*engine.Manifest, error) {
	doc := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(doc)) == 0 {
		return nil, engine.NewManifestMalformedError(path, errors.New("manifest is empty"))
	}
	if !json.Valid(doc) {
		var probe interface{}
		return nil, engine.NewManifestMalformedError(path, json.Unmarshal(doc, &probe))
	}

	if violations := validateSchema(doc); len(violations) > 0 {
		return nil, engine.NewManifestInvalidError(path, strings.Join(violations, "; "), nil).
			WithDetail("violations", violations)
	}

	var raw document
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, engine.NewManifestInvalidError(path, "manifest does not match the expected layout", err)
	}

	m, err := build(path, &raw)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(m); err != nil {
		return nil, engine.NewManifestInvalidError(path, "manifest failed validation", err)
	}
	return m, nil
}

func build(path string, raw *document) (*engine.Manifest, error) {
	m := &engine.Manifest{
		Target:         raw.Target,
		Path:           path,
		PackageManager: raw.PackageManager,
		Dotfiles:       raw.Dotfiles,
	}
	if m.Target == "" {
		m.Target = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var err error
	if m.Sources, m.Packages, m.Runtimes, err = convertLists(path, &raw.lists); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(raw.Environment))
	for key := range raw.Environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		m.Environment = append(m.Environment, engine.EnvVarSpec{Key: key, Value: raw.Environment[key]})
	}

	if raw.Optional != nil {
		opt := &engine.OptionalSection{}
		if opt.Sources, opt.Packages, opt.Runtimes, err = convertLists(path, raw.Optional); err != nil {
			return nil, err
		}
		if !opt.Empty() {
			m.Optional = opt
		}
	}
	return m, nil
}

func convertLists(path string, l *lists) ([]engine.SourceSpec, []engine.PackageSpec, []engine.RuntimeSpec, error) {
	buckets, err := decodeList(path, "scoopBuckets", l.ScoopBuckets)
	if err != nil {
		return nil, nil, nil, err
	}
	var sources []engine.SourceSpec
	for _, b := range buckets {
		sources = append(sources, engine.SourceSpec{Name: b.Name, URL: b.URL, Manager: engine.ManagerScoop})
	}

	system := l.SystemPackages
	key := "systemPackages"
	if len(system) == 0 {
		system, key = l.Packages, "packages"
	}

	groups := []struct {
		key     string
		raw     []json.RawMessage
		manager string
	}{
		{key, system, ""},
		{"scoopTools", l.ScoopTools, ""},
		{"wingetPackages", l.WingetPackages, engine.ManagerWinget},
		{"powershellModules", l.PowershellModules, engine.ManagerPSGallery},
		{"fonts", l.Fonts, ""},
	}

	var packages []engine.PackageSpec
	seen := make(map[string]bool)
	for _, g := range groups {
		items, err := decodeList(path, g.key, g.raw)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, it := range items {
			spec := engine.PackageSpec{Name: it.Name, Source: it.Source, Manager: g.manager}
			id := strings.ToLower(spec.Manager + "\x00" + spec.Name)
			if seen[id] {
				continue
			}
			seen[id] = true
			packages = append(packages, spec)
		}
	}

	declared, err := decodeList(path, "miseRuntimes", l.MiseRuntimes)
	if err != nil {
		return nil, nil, nil, err
	}
	var runtimes []engine.RuntimeSpec
	for _, it := range declared {
		runtimes = append(runtimes, engine.NewRuntimeSpec(it.Name, it.Version))
	}
	return sources, packages, runtimes, nil
}

// decodeList normalizes a list whose elements are either strings or objects,
// rejecting empty and duplicate names. Names are compared without their
// source, so "git" and "extras/git" in one list are duplicates.
func decodeList(path, key string, raw []json.RawMessage) ([]item, error) {
	items := make([]item, 0, len(raw))
	seen := make(map[string]int)
	for i, elem := range raw {
		it, err := decodeItem(key, elem)
		if err != nil {
			return nil, engine.NewManifestInvalidError(path, fmt.Sprintf("%s[%d]: %v", key, i, err), err)
		}
		if it.Name == "" {
			return nil, engine.NewManifestInvalidError(path, fmt.Sprintf("%s[%d]: name must not be empty", key, i), nil)
		}
		id := strings.ToLower(it.Name)
		if first, dup := seen[id]; dup {
			return nil, engine.NewManifestInvalidError(path,
				fmt.Sprintf("%s[%d]: duplicate entry %q (first declared at index %d)", key, i, it.Name, first), nil)
		}
		seen[id] = i
		items = append(items, it)
	}
	return items, nil
}

func decodeItem(key string, elem json.RawMessage) (item, error) {
	var s string
	if err := json.Unmarshal(elem, &s); err == nil {
		return parseItem(key, s), nil
	}
	var it item
	if err := json.Unmarshal(elem, &it); err != nil {
		return item{}, fmt.Errorf("expected a string or an object: %w", err)
	}
	it.Name = strings.TrimSpace(it.Name)
	it.Source = strings.TrimSpace(it.Source)
	if it.Source == "" && key != "miseRuntimes" && key != "scoopBuckets" {
		parsed := parseItem(key, it.Name)
		it.Name, it.Source = parsed.Name, parsed.Source
	}
	return it, nil
}

// parseItem reads the string form: "source/name" for packages, "name@version"
// for runtimes, a bare name for buckets.
func parseItem(key, s string) item {
	s = strings.TrimSpace(s)
	switch key {
	case "scoopBuckets":
		return item{Name: s}
	case "miseRuntimes":
		spec := engine.ParseRuntime(s)
		return item{Name: spec.Name, Version: spec.Version}
	}
	if source, name, ok := strings.Cut(s, "/"); ok {
		return item{Name: name, Source: source}
	}
	return item{Name: s}
}
