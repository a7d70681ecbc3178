package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		packageNamingPolicy(),
		artifactNamingPolicy(),
		snapshotVersionPolicy(),
	}
}

// packageNamingPolicy enforces Java package conventions.
func packageNamingPolicy() Policy {
	return Policy{
		Name:        "package-naming",
		Description: "Java packages are lowercase and live under the groupId",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"naming", "java"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package archetype.policies.package_naming

import rego.v1

deny contains violation if {
	pkg := input.request["package"]
	pkg != ""
	lower(pkg) != pkg
	violation := {
		"message": sprintf("Package '%s' should be lowercase", [pkg]),
		"severity": "warning",
		"subject": "package",
	}
}

deny contains violation if {
	pkg := input.request["package"]
	group := input.request.groupId
	pkg != ""
	group != ""
	pkg != group
	not startswith(pkg, concat("", [group, "."]))
	violation := {
		"message": sprintf("Package '%s' is not under groupId '%s'", [pkg, group]),
		"severity": "info",
		"subject": "package",
	}
}
`,
	}
}

// artifactNamingPolicy enforces artifactId and groupId conventions.
func artifactNamingPolicy() Policy {
	return Policy{
		Name:        "artifact-naming",
		Description: "artifactIds and groupIds use safe characters; artifactIds are lowercase",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "maven"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package archetype.policies.artifact_naming

import rego.v1

deny contains violation if {
	name := input.request.artifactId
	not regex.match("^[A-Za-z0-9_.-]+$", name)
	violation := {
		"message": sprintf("artifactId '%s' must contain only letters, digits, '.', '_' and '-'", [name]),
		"severity": "error",
		"subject": "artifactId",
	}
}

deny contains violation if {
	name := input.request.artifactId
	regex.match("^[A-Za-z0-9_.-]+$", name)
	lower(name) != name
	violation := {
		"message": sprintf("artifactId '%s' should be lowercase", [name]),
		"severity": "warning",
		"subject": "artifactId",
	}
}

deny contains violation if {
	group := input.request.groupId
	not regex.match("^[A-Za-z0-9_.-]+$", group)
	violation := {
		"message": sprintf("groupId '%s' must contain only letters, digits, '.', '_' and '-'", [group]),
		"severity": "error",
		"subject": "groupId",
	}
}
`,
	}
}

// snapshotVersionPolicy flags release versions on freshly generated projects.
func snapshotVersionPolicy() Policy {
	return Policy{
		Name:        "snapshot-version",
		Description: "New projects usually start from a SNAPSHOT version",
		Severity:    SeverityInfo,
		Enabled:     true,
		Tags:        []string{"versioning"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package archetype.policies.snapshot_version

import rego.v1

deny contains violation if {
	input.operation == "generate"
	version := input.request.version
	version != ""
	not endswith(version, "-SNAPSHOT")
	violation := {
		"message": sprintf("Version '%s' is not a SNAPSHOT; new projects usually start from one", [version]),
		"severity": "info",
		"subject": "version",
	}
}
`,
	}
}
