package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davidthor/shipctl/pkg/errors"
)

// Loader parses service descriptors from files.
type Loader interface {
	// Load parses, defaults, and validates a descriptor from the given path
	Load(path string) (*Descriptor, error)

	// LoadFromBytes parses a descriptor from raw bytes
	LoadFromBytes(data []byte, sourcePath string) (*Descriptor, error)
}

// formatDetectingLoader implements the Loader interface, choosing the
// parser by file extension (.yaml/.yml or .hcl).
type formatDetectingLoader struct{}

// NewLoader creates a new descriptor loader.
func NewLoader() Loader {
	return &formatDetectingLoader{}
}

// Load parses a descriptor from the given path.
func (l *formatDetectingLoader) Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, fmt.Sprintf("failed to read %s", path), err)
	}
	return l.LoadFromBytes(data, path)
}

// LoadFromBytes parses a descriptor from raw bytes.
func (l *formatDetectingLoader) LoadFromBytes(data []byte, sourcePath string) (*Descriptor, error) {
	var desc *Descriptor
	var err error

	switch strings.ToLower(filepath.Ext(sourcePath)) {
	case ".hcl":
		desc, err = parseHCL(data, sourcePath)
	default:
		desc, err = parseYAML(data, sourcePath)
	}
	if err != nil {
		return nil, err
	}

	desc.ApplyDefaults()
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// yamlSource supports both the full object form and a string shorthand
// that means buildContext.
type yamlSource struct {
	BuildContext string
	Image        string
}

func (s *yamlSource) UnmarshalYAML(node *yaml.Node) error {
	// String shorthand: source: ../app
	if node.Kind == yaml.ScalarNode {
		s.BuildContext = node.Value
		return nil
	}

	type rawSource struct {
		BuildContext string `yaml:"buildContext"`
		Image        string `yaml:"image"`
	}
	var raw rawSource
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("source must be a string or an object: %w", err)
	}
	s.BuildContext = raw.BuildContext
	s.Image = raw.Image
	return nil
}

// orderedMap preserves the file order of mapping entries, which the
// container payload must reproduce.
type orderedMap []EnvVar

func (m *orderedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got %s", node.Tag)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, value string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&value); err != nil {
			return err
		}
		*m = append(*m, EnvVar{Name: key, Value: value})
	}
	return nil
}

// secretMap preserves file order like orderedMap. A string value is
// classified by the arn: prefix; the object form sets value/valueFrom
// explicitly, for literals that happen to start with "arn:":
//
//	secrets:
//	  SESSION_KEY: super-secret
//	  OPENAI_API_KEY: arn:aws:secretsmanager:us-west-2:1:secret:openai
//	  ODD_LITERAL:
//	    value: "arn:prefixed-but-literal"
type secretMap []Secret

func (m *secretMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got %s", node.Tag)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		valNode := node.Content[i+1]
		if valNode.Kind == yaml.MappingNode {
			var raw struct {
				Value     string `yaml:"value"`
				ValueFrom string `yaml:"valueFrom"`
			}
			if err := valNode.Decode(&raw); err != nil {
				return fmt.Errorf("secret %q: %w", key, err)
			}
			*m = append(*m, Secret{Name: key, Value: raw.Value, ValueFrom: raw.ValueFrom})
			continue
		}
		var value string
		if err := valNode.Decode(&value); err != nil {
			return err
		}
		*m = append(*m, classifySecretValue(key, value))
	}
	return nil
}

type yamlDescriptor struct {
	Name              string       `yaml:"name"`
	Source            yamlSource   `yaml:"source"`
	Port              int          `yaml:"port"`
	CPU               int          `yaml:"cpu"`
	Memory            int          `yaml:"memory"`
	DesiredCount      int          `yaml:"desiredCount"`
	Network           *Network     `yaml:"network"`
	TLSCertificateArn string       `yaml:"tlsCertificateArn"`
	Env               orderedMap   `yaml:"env"`
	Secrets           secretMap    `yaml:"secrets"`
	Owner             string       `yaml:"owner"`
	Autoscaling       Autoscaling  `yaml:"autoscaling"`
	HealthCheckPath   string       `yaml:"healthCheckPath"`
	LogRetentionDays  int          `yaml:"logRetentionDays"`
}

func parseYAML(data []byte, sourcePath string) (*Descriptor, error) {
	var raw yamlDescriptor
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.ParseError(sourcePath, err)
	}

	desc := &Descriptor{
		Name:              raw.Name,
		BuildContext:      raw.Source.BuildContext,
		ImageRef:          raw.Source.Image,
		ListenPort:        raw.Port,
		CPUUnits:          raw.CPU,
		MemoryMiB:         raw.Memory,
		DesiredCount:      raw.DesiredCount,
		Network:           raw.Network,
		TLSCertificateRef: raw.TLSCertificateArn,
		OwnerTag:          raw.Owner,
		Autoscaling:       raw.Autoscaling,
		HealthCheckPath:   raw.HealthCheckPath,
		LogRetentionDays:  raw.LogRetentionDays,
	}

	desc.Env = append(desc.Env, raw.Env...)
	desc.Secrets = append(desc.Secrets, raw.Secrets...)

	return desc, nil
}

// sortedAttrNames returns attribute names ordered by their position in
// the source file, so env/secrets keep their declaration order.
func sortedAttrNames(attrs map[string]attrEntry) []string {
	names := make([]string, 0, len(attrs))
	for n := range attrs {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return attrs[names[i]].byteOffset < attrs[names[j]].byteOffset
	})
	return names
}
