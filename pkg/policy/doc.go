// Package policy provides Open Policy Agent (OPA) integration for archetype.
//
// Policies are Rego modules whose package defines a `deny` set. Each entry is
// either a message string or an object with "message", "severity" and
// "subject" fields. Policies see the request under evaluation as `input`:
//
//	{
//	  "operation": "generate",
//	  "request": {
//	    "groupId": "org.acme",
//	    "artifactId": "shop",
//	    "version": "1.0-SNAPSHOT",
//	    "package": "org.acme.shop",
//	    "properties": {"groupId": "org.acme", ...},
//	    "archetype": "org.apache.maven.archetypes:maven-archetype-quickstart:1.4"
//	  },
//	  "context": {"timestamp": "...", "interactive": false}
//	}
//
// Violations with severity "error" or "critical" block the operation with a
// policy-violation error; "warning" and "info" findings are logged.
//
// # Usage
//
//	e, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := e.LoadPolicies(ctx, []string{"/etc/archetype/policies"}); err != nil {
//	    return err
//	}
//	if err := e.CheckGeneration(ctx, archetype, conf, false); err != nil {
//	    return err
//	}
//
// # Built-in Policies
//
//   - package-naming: lowercase packages below the groupId
//   - artifact-naming: safe characters in groupId and artifactId, lowercase artifactId
//   - snapshot-version: advises SNAPSHOT versions for new projects
//
// # Custom Policies
//
// The Loader reads the files and directories listed under policy.paths:
// .rego files are named after the file and described by their leading
// comment block, which may also carry annotations:
//
//	# Archetypes are released, never snapshots
//	# severity: error
//	# operations: create
//	package acme.release
//
// .json files hold a serialized Policy. A policy without operations is
// evaluated for both generate and create.
package policy
