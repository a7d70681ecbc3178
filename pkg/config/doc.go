// Package config loads the archetype configuration.
//
// Configuration comes from three layers, later ones winning:
//
//  1. Built-in defaults (DefaultConfig)
//  2. archetype.yaml, found via --config, the working directory, or ~/.archetype
//  3. ARCHETYPE_* environment variables, with dots in keys replaced by
//     underscores (ARCHETYPE_TELEMETRY_LOGGING_LEVEL=debug)
//
// The file is checked against the CUE #Config definition held by the
// SchemaRegistry before it is merged, so unknown keys and out-of-range
// values are reported with their path. The merged result is decoded with
// viper and checked again with go-playground/validator struct tags.
//
// # Example file
//
//	local_repository: ~/.m2/repository
//	catalogs: [local, internal, file:///opt/catalogs/team.xml]
//	interactive: false
//	policy:
//	  paths: [./policies]
//	telemetry:
//	  metrics:
//	    enabled: true
//	    textfile: /var/lib/node_exporter/archetype.prom
//
// The registry also carries the #Request schema used to check batch-mode
// generation properties before any archetype is resolved.
package config
