// Package yaml loads policy tables: the built-in defaults, optionally
// overlaid with a user policy file. The defaults carry the detection
// vocabulary for the common ecosystems; a policy file replaces whole
// sections rather than merging entry by entry, so overrides stay
// predictable.
package yaml

import (
	"fmt"
	"os"
	"time"

	goyaml "gopkg.in/yaml.v3"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// rawTables is the YAML shape of a policy file. Every section is optional;
// absent sections keep their defaults.
type rawTables struct {
	BuildTools      []rawBuildTool  `yaml:"build_tools"`
	CIServices      []rawCIService  `yaml:"ci_services"`
	TrustedBuilders []string        `yaml:"trusted_builders"`
	PredicateTypes  []string        `yaml:"predicate_types"`
	IncludeChecks   []string        `yaml:"include_checks"`
	ExcludeChecks   []string        `yaml:"exclude_checks"`
	Bounds          *rawBounds      `yaml:"bounds"`
	Network         *rawNetwork     `yaml:"network"`
	Workers         *int            `yaml:"workers"`
}

type rawBuildTool struct {
	Name          string                    `yaml:"name"`
	Language      string                    `yaml:"language"`
	EntryConfigs  []string                  `yaml:"entry_configs"`
	BuildConfigs  []string                  `yaml:"build_configs"`
	Builders      []string                  `yaml:"builders"`
	BuildArgs     []string                  `yaml:"build_args"`
	DeployArgs    []string                  `yaml:"deploy_args"`
	DeployActions []string                  `yaml:"deploy_actions"`
	CIOverrides   map[string]rawArgOverride `yaml:"ci_overrides"`
}

type rawArgOverride struct {
	BuildArgs  []string `yaml:"build_args"`
	DeployArgs []string `yaml:"deploy_args"`
}

type rawCIService struct {
	Name              string   `yaml:"name"`
	EntryPaths        []string `yaml:"entry_paths"`
	Hosted            bool     `yaml:"hosted"`
	BuilderIDPrefixes []string `yaml:"builder_id_prefixes"`
}

type rawBounds struct {
	MaxDepth        int      `yaml:"max_depth"`
	ScriptTimeout   duration `yaml:"script_timeout"`
	WorkflowTimeout duration `yaml:"workflow_timeout"`
}

type rawNetwork struct {
	HTTPTimeout duration `yaml:"http_timeout"`
	MaxRetries  int      `yaml:"max_retries"`
}

// duration accepts Go duration strings ("30s", "1m") in policy files.
type duration time.Duration

func (d *duration) UnmarshalYAML(node *goyaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = duration(parsed)
	return nil
}

func (d duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Defaults returns the built-in policy tables.
func Defaults() *entities.PolicyTables {
	return &entities.PolicyTables{
		BuildTools: []entities.BuildToolSpec{
			{
				Name:         "maven",
				Language:     "java",
				EntryConfigs: []string{"mvnw"},
				BuildConfigs: []string{"pom.xml"},
				Builders:     []string{"mvn", "mvnw"},
				BuildArgs:    []string{"package", "verify", "install", "compile"},
				DeployArgs: []string{
					"deploy", "deploy:deploy",
					"org.apache.maven.plugins:maven-deploy-plugin:deploy",
				},
			},
			{
				Name:         "gradle",
				Language:     "java",
				EntryConfigs: []string{"gradlew"},
				BuildConfigs: []string{"build.gradle", "build.gradle.kts", "settings.gradle", "settings.gradle.kts"},
				Builders:     []string{"gradle", "gradlew"},
				BuildArgs:    []string{"build", "assemble", "jar"},
				DeployArgs:   []string{"publish", "publishToSonatype", "artifactoryPublish"},
			},
			{
				Name:          "pip",
				Language:      "python",
				BuildConfigs:  []string{"setup.py", "setup.cfg", "pyproject.toml"},
				Builders:      []string{"pip", "pip3", "python", "python3", "twine", "flit", "poetry"},
				BuildArgs:     []string{"build", "install", "wheel", "sdist", "bdist_wheel"},
				DeployArgs:    []string{"upload", "publish"},
				DeployActions: []string{"pypa/gh-action-pypi-publish"},
			},
			{
				Name:         "npm",
				Language:     "javascript",
				BuildConfigs: []string{"package.json", "package-lock.json", "yarn.lock"},
				Builders:     []string{"npm", "yarn", "pnpm"},
				BuildArgs:    []string{"build", "pack", "install", "ci"},
				DeployArgs:   []string{"publish"},
			},
			{
				Name:         "go",
				Language:     "go",
				BuildConfigs: []string{"go.mod", "go.sum"},
				Builders:     []string{"go", "goreleaser"},
				BuildArgs:    []string{"build", "install"},
				DeployArgs:   []string{"release"},
			},
			{
				Name:         "docker",
				Language:     "any",
				BuildConfigs: []string{"Dockerfile", "Dockerfile.*", "docker-compose.yml"},
				Builders:     []string{"docker"},
				BuildArgs:    []string{"build"},
				DeployArgs:   []string{"push"},
			},
		},
		CIServices: []entities.CIServiceSpec{
			{
				Name:       "github_actions",
				EntryPaths: []string{".github/workflows"},
				Hosted:     true,
				BuilderIDPrefixes: []string{
					"https://github.com/",
					"https://token.actions.githubusercontent.com/",
				},
			},
			{Name: "gitlab_ci", EntryPaths: []string{".gitlab-ci.yml"}, Hosted: true},
			{Name: "circleci", EntryPaths: []string{".circleci/config.yml"}, Hosted: true},
			{Name: "travis", EntryPaths: []string{".travis.yml"}, Hosted: true},
			{Name: "jenkins", EntryPaths: []string{"Jenkinsfile"}, Hosted: false},
		},
		TrustedBuilders: []string{
			"*slsa-framework/slsa-github-generator/.github/workflows/*",
		},
		PredicateTypes: []string{
			"https://slsa.dev/provenance/v0.2",
			"https://slsa.dev/provenance/v1",
			"https://github.com/npm/attestation/tree/main/specs/publish/v0.1",
		},
		IncludeChecks: []string{"*"},
		Bounds: entities.ResolutionBounds{
			MaxDepth:        3,
			ScriptTimeout:   30 * time.Second,
			WorkflowTimeout: 30 * time.Second,
		},
		Network: entities.NetworkPolicy{
			HTTPTimeout: 10 * time.Second,
			MaxRetries:  3,
		},
		Workers: 4,
	}
}

// Load reads a policy file and overlays it onto the defaults. Each present
// top-level section replaces the default section wholesale.
func Load(path string) (*entities.PolicyTables, error) {
	tables := Defaults()
	if path == "" {
		return tables, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	var raw rawTables
	if err := goyaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	overlay(tables, &raw)
	if err := validate(tables); err != nil {
		return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return tables, nil
}

func overlay(tables *entities.PolicyTables, raw *rawTables) {
	if len(raw.BuildTools) > 0 {
		tools := make([]entities.BuildToolSpec, 0, len(raw.BuildTools))
		for _, t := range raw.BuildTools {
			spec := entities.BuildToolSpec{
				Name:          t.Name,
				Language:      t.Language,
				EntryConfigs:  t.EntryConfigs,
				BuildConfigs:  t.BuildConfigs,
				Builders:      t.Builders,
				BuildArgs:     t.BuildArgs,
				DeployArgs:    t.DeployArgs,
				DeployActions: t.DeployActions,
			}
			if len(t.CIOverrides) > 0 {
				spec.CIOverrides = make(map[string]entities.ArgOverride, len(t.CIOverrides))
				for ci, o := range t.CIOverrides {
					spec.CIOverrides[ci] = entities.ArgOverride{
						BuildArgs:  o.BuildArgs,
						DeployArgs: o.DeployArgs,
					}
				}
			}
			tools = append(tools, spec)
		}
		tables.BuildTools = tools
	}
	if len(raw.CIServices) > 0 {
		services := make([]entities.CIServiceSpec, 0, len(raw.CIServices))
		for _, s := range raw.CIServices {
			services = append(services, entities.CIServiceSpec{
				Name:              s.Name,
				EntryPaths:        s.EntryPaths,
				Hosted:            s.Hosted,
				BuilderIDPrefixes: s.BuilderIDPrefixes,
			})
		}
		tables.CIServices = services
	}
	if len(raw.TrustedBuilders) > 0 {
		tables.TrustedBuilders = raw.TrustedBuilders
	}
	if len(raw.PredicateTypes) > 0 {
		tables.PredicateTypes = raw.PredicateTypes
	}
	if len(raw.IncludeChecks) > 0 {
		tables.IncludeChecks = raw.IncludeChecks
	}
	if len(raw.ExcludeChecks) > 0 {
		tables.ExcludeChecks = raw.ExcludeChecks
	}
	if raw.Bounds != nil {
		if raw.Bounds.MaxDepth > 0 {
			tables.Bounds.MaxDepth = raw.Bounds.MaxDepth
		}
		if raw.Bounds.ScriptTimeout > 0 {
			tables.Bounds.ScriptTimeout = time.Duration(raw.Bounds.ScriptTimeout)
		}
		if raw.Bounds.WorkflowTimeout > 0 {
			tables.Bounds.WorkflowTimeout = time.Duration(raw.Bounds.WorkflowTimeout)
		}
	}
	if raw.Network != nil {
		if raw.Network.HTTPTimeout > 0 {
			tables.Network.HTTPTimeout = time.Duration(raw.Network.HTTPTimeout)
		}
		if raw.Network.MaxRetries > 0 {
			tables.Network.MaxRetries = raw.Network.MaxRetries
		}
	}
	if raw.Workers != nil && *raw.Workers > 0 {
		tables.Workers = *raw.Workers
	}
}

func validate(tables *entities.PolicyTables) error {
	seen := make(map[string]bool, len(tables.BuildTools))
	for _, tool := range tables.BuildTools {
		if tool.Name == "" {
			return fmt.Errorf("build tool with empty name")
		}
		if seen[tool.Name] {
			return fmt.Errorf("duplicate build tool %q", tool.Name)
		}
		seen[tool.Name] = true
		if len(tool.Builders) == 0 && len(tool.DeployActions) == 0 {
			return fmt.Errorf("build tool %q has no builders and no deploy actions", tool.Name)
		}
	}
	seenCI := make(map[string]bool, len(tables.CIServices))
	for _, ci := range tables.CIServices {
		if ci.Name == "" {
			return fmt.Errorf("CI service with empty name")
		}
		if seenCI[ci.Name] {
			return fmt.Errorf("duplicate CI service %q", ci.Name)
		}
		seenCI[ci.Name] = true
		if len(ci.EntryPaths) == 0 {
			return fmt.Errorf("CI service %q has no entry paths", ci.Name)
		}
	}
	return nil
}

// DumpDefaults renders the built-in tables as YAML, a starting point for a
// user policy file.
func DumpDefaults() ([]byte, error) {
	tables := Defaults()
	raw := rawTables{
		TrustedBuilders: tables.TrustedBuilders,
		PredicateTypes:  tables.PredicateTypes,
		IncludeChecks:   tables.IncludeChecks,
		ExcludeChecks:   tables.ExcludeChecks,
		Bounds: &rawBounds{
			MaxDepth:        tables.Bounds.MaxDepth,
			ScriptTimeout:   duration(tables.Bounds.ScriptTimeout),
			WorkflowTimeout: duration(tables.Bounds.WorkflowTimeout),
		},
		Network: &rawNetwork{
			HTTPTimeout: duration(tables.Network.HTTPTimeout),
			MaxRetries:  tables.Network.MaxRetries,
		},
		Workers: &tables.Workers,
	}
	for _, t := range tables.BuildTools {
		rt := rawBuildTool{
			Name:          t.Name,
			Language:      t.Language,
			EntryConfigs:  t.EntryConfigs,
			BuildConfigs:  t.BuildConfigs,
			Builders:      t.Builders,
			BuildArgs:     t.BuildArgs,
			DeployArgs:    t.DeployArgs,
			DeployActions: t.DeployActions,
		}
		for ci, o := range t.CIOverrides {
			if rt.CIOverrides == nil {
				rt.CIOverrides = make(map[string]rawArgOverride)
			}
			rt.CIOverrides[ci] = rawArgOverride{BuildArgs: o.BuildArgs, DeployArgs: o.DeployArgs}
		}
		raw.BuildTools = append(raw.BuildTools, rt)
	}
	for _, s := range tables.CIServices {
		raw.CIServices = append(raw.CIServices, rawCIService{
			Name:              s.Name,
			EntryPaths:        s.EntryPaths,
			Hosted:            s.Hosted,
			BuilderIDPrefixes: s.BuilderIDPrefixes,
		})
	}
	return goyaml.Marshal(&raw)
}
