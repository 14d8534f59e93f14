package config

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
)

// Load reads and validates a job file from the host filesystem.
func Load(path string) (*File, error) {
	return LoadFS(osfs.New("/"), path)
}

// LoadFS reads and validates a job file from filesystem. The format is
// chosen by extension: .yaml and .yml for YAML, .toml for TOML. Unknown keys
// are rejected in both formats.
func LoadFS(filesystem billy.Filesystem, path string) (*File, error) {
	data, err := util.ReadFile(filesystem, path)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig, "failed to read job file",
			map[string]any{"path": path})
	}

	f, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig, "failed to load job file",
			map[string]any{"path": path})
	}
	return f, nil
}

// Parse decodes and validates job file contents in the format named by ext.
func Parse(data []byte, ext string) (*File, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid YAML")
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid YAML")
		}
		setOptionOrder(&f, yamlOptionOrder(&doc))
	case ".toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid TOML")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, errors.NewWithContext(errors.CodeInvalidConfig, "unknown keys in TOML",
				map[string]any{"keys": keys})
		}
		setOptionOrder(&f, tomlOptionOrder(md))
	default:
		return nil, errors.NewWithContext(errors.CodeInvalidConfig, "unsupported job file format",
			map[string]any{"extension": ext})
	}

	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// setOptionOrder records the written order of each job's options. It is
// skipped when the document shape does not line up with the decoded jobs.
func setOptionOrder(f *File, orders [][]string) {
	if len(orders) != len(f.Jobs) {
		return
	}
	for i := range f.Jobs {
		f.Jobs[i].OptionOrder = orders[i]
	}
}

// yamlOptionOrder returns the option keys of every job in document order.
func yamlOptionOrder(doc *yaml.Node) [][]string {
	root := resolveAlias(doc)
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = resolveAlias(root.Content[0])
	}
	jobs := mappingValue(root, "jobs")
	if jobs == nil || jobs.Kind != yaml.SequenceNode {
		return nil
	}

	orders := make([][]string, 0, len(jobs.Content))
	for _, job := range jobs.Content {
		var names []string
		if options := mappingValue(resolveAlias(job), "options"); options != nil && options.Kind == yaml.MappingNode {
			for i := 0; i+1 < len(options.Content); i += 2 {
				names = append(names, options.Content[i].Value)
			}
		}
		orders = append(orders, names)
	}
	return orders
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return resolveAlias(n.Content[i+1])
		}
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// tomlOptionOrder returns the option keys of every job in document order.
// Each [[jobs]] header starts a new job; keys below it of the form
// jobs.options.<name> belong to that job.
func tomlOptionOrder(md toml.MetaData) [][]string {
	var orders [][]string
	for _, key := range md.Keys() {
		switch {
		case len(key) == 1 && key[0] == "jobs":
			orders = append(orders, nil)
		case len(key) == 3 && key[0] == "jobs" && key[1] == "options" && len(orders) > 0:
			last := len(orders) - 1
			orders[last] = append(orders[last], key[2])
		}
	}
	return orders
}
