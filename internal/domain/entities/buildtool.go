package entities

// ArgOverride replaces a tool's build/deploy argument vocabulary for one
// CI service. Some ecosystems invoke the same tool differently under CI.
type ArgOverride struct {
	BuildArgs  []string
	DeployArgs []string
}

// BuildToolSpec is the detection vocabulary for one build tool: which files
// identify it, which executables run it, and which arguments mark build or
// deploy invocations.
type BuildToolSpec struct {
	Name     string
	Language string

	// EntryConfigs are wrapper or entry files (glob patterns over base
	// names) whose presence identifies the tool directly.
	EntryConfigs []string

	// BuildConfigs are build configuration files (glob patterns over
	// base names).
	BuildConfigs []string

	// Builders are the executable names that run the tool.
	Builders []string

	// BuildArgs and DeployArgs classify an invocation's arguments.
	BuildArgs  []string
	DeployArgs []string

	// DeployActions are CI action references (owner/repo, no version)
	// that deploy on the tool's behalf.
	DeployActions []string

	// CIOverrides replace the argument vocabulary per CI service name.
	CIOverrides map[string]ArgOverride
}

// ArgsFor returns the build and deploy argument vocabulary effective under
// the named CI service.
func (t *BuildToolSpec) ArgsFor(ci string) (build, deploy []string) {
	if override, ok := t.CIOverrides[ci]; ok {
		build, deploy = t.BuildArgs, t.DeployArgs
		if len(override.BuildArgs) > 0 {
			build = override.BuildArgs
		}
		if len(override.DeployArgs) > 0 {
			deploy = override.DeployArgs
		}
		return build, deploy
	}
	return t.BuildArgs, t.DeployArgs
}

// CIServiceSpec is the detection vocabulary for one CI service.
type CIServiceSpec struct {
	Name string

	// EntryPaths are repo-relative files or directories whose presence
	// identifies the service.
	EntryPaths []string

	// Hosted marks services running on infrastructure the build author
	// does not control; only these can ground trust level L2.
	Hosted bool

	// BuilderIDPrefixes attribute a provenance builder identity to this
	// service.
	BuilderIDPrefixes []string
}

// DetectedTool records one build tool found in a repository tree.
type DetectedTool struct {
	Tool  string
	Files []string
}

// DetectedCIService records one CI service found in a repository tree.
type DetectedCIService struct {
	Name   string
	Hosted bool
	Files  []string
}

// BuildInvocation is a resolved command recognized as a build or deploy
// invocation of a known tool.
type BuildInvocation struct {
	Tool string

	// CI names the service whose automation carried the command; empty
	// for standalone repository scripts.
	CI string

	// Deploy distinguishes deploy/publish invocations from plain builds.
	Deploy bool

	Command ResolvedCommand

	// Partial marks an invocation found inside a partially resolved
	// sequence.
	Partial bool
}
