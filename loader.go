package csvmigrate

import (
	"io"
	"io/fs"
	"strings"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

// Config is a loaded configuration bundle: field mappings, defaults and
// filter attachments, in file order.
type Config struct {
	Fields   FieldsSpec
	Defaults DefaultsSpec
	Filters  FiltersSpec
}

type loader struct {
	fileProvider FileProvider
	config       Config
}

// LoadConfig loads all configuration files from a file provider into a
// single merged Config.
func LoadConfig(fileProvider FileProvider) (*Config, error) {
	loader := &loader{
		fileProvider: fileProvider,
	}
	err := loader.load()
	if err != nil {
		return nil, err
	}
	return &loader.config, nil
}

// LoadConfigFS loads all ".mig.yaml" files from a filesystem.
func LoadConfigFS(fsys fs.FS, options ...FSFileProviderOption) (*Config, error) {
	return LoadConfig(NewFSFileProvider(fsys, options...))
}

// LoadConfigDirectory loads all ".mig.yaml" files from a directory tree.
func LoadConfigDirectory(rootDir string, options ...FSFileProviderOption) (*Config, error) {
	return LoadConfig(NewDirectoryFileProvider(rootDir, options...))
}

func (l *loader) load() error {
	return l.fileProvider.Load(func(info FileInfo) error {
		return l.loadFile(info.File)
	})
}

func (l *loader) loadFile(file io.Reader) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	fileParser, err := parser.ParseBytes(data, 0)
	if err != nil {
		return err
	}

	for _, doc := range fileParser.Docs {
		if doc.Body == nil {
			continue
		}
		err := l.loadDoc(doc.Body)
		if err != nil {
			return err
		}
	}

	return nil
}

func (l *loader) loadDoc(node ast.Node) error {
	switch n := node.(type) {
	case *ast.MappingValueNode:
		section, err := getStringNode(n.Key)
		if err != nil {
			return err
		}
		return l.loadSection(section, n.Value)
	case *ast.MappingNode:
		for _, value := range n.Values {
			err := l.loadDoc(value)
			if err != nil {
				return err
			}
		}
	default:
		return NewConfigErrorf("invalid config node '%s' at '%s'", n.Type().String(), n.GetPath())
	}

	return nil
}

func (l *loader) loadSection(section string, node ast.Node) error {
	switch section {
	case "fields":
		return l.loadFields(node)
	case "defaults":
		return l.loadDefaults(node)
	case "filters":
		return l.loadFilters(node)
	default:
		return NewConfigErrorf("unknown config section '%s'", section)
	}
}

func mappingValues(node ast.Node) ([]*ast.MappingValueNode, error) {
	switch n := node.(type) {
	case *ast.MappingNode:
		return n.Values, nil
	case *ast.MappingValueNode:
		return []*ast.MappingValueNode{n}, nil
	case *ast.NullNode:
		return nil, nil
	default:
		return nil, NewConfigErrorf("expected a mapping at '%s'", node.GetPath())
	}
}

func (l *loader) loadFields(node ast.Node) error {
	values, err := mappingValues(node)
	if err != nil {
		return err
	}
	for _, value := range values {
		header, err := getStringNode(value.Key)
		if err != nil {
			return err
		}
		paths, err := getScalarNode(value.Value)
		if err != nil {
			return err
		}
		var pathList string
		switch p := paths.(type) {
		case nil:
		case string:
			pathList = p
		default:
			return NewConfigErrorf("field paths for header '%s' must be a string or null", header)
		}
		if strings.TrimSpace(pathList) == "" {
			continue
		}
		for _, path := range strings.Split(pathList, ",") {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			l.config.Fields = append(l.config.Fields, FieldSpec{Path: path, Header: header})
		}
	}
	return nil
}

func (l *loader) loadDefaults(node ast.Node) error {
	values, err := mappingValues(node)
	if err != nil {
		return err
	}
	for _, value := range values {
		path, err := getStringNode(value.Key)
		if err != nil {
			return err
		}
		def, err := getScalarNode(value.Value)
		if err != nil {
			return err
		}
		l.config.Defaults = append(l.config.Defaults, DefaultSpec{Path: path, Value: def})
	}
	return nil
}

func (l *loader) loadFilters(node ast.Node) error {
	values, err := mappingValues(node)
	if err != nil {
		return err
	}
	for _, value := range values {
		path, err := getStringNode(value.Key)
		if err != nil {
			return err
		}
		rules, err := mappingValues(value.Value)
		if err != nil {
			return err
		}
		var spec FilterSpec
		for _, rule := range rules {
			key, err := getKeyNode(rule.Key)
			if err != nil {
				return err
			}
			rv, err := getScalarNode(rule.Value)
			if err != nil {
				return err
			}
			spec = append(spec, FilterRule{Key: key, Value: rv})
		}
		l.config.Filters = append(l.config.Filters, FilterAttachment{Path: path, Spec: spec})
	}
	return nil
}
