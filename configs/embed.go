// Package configs provides embedded configuration templates for shelfsearch.
//
// Templates are embedded at build time with go:embed so they ship in every
// distribution, whether installed from source or a binary release.
package configs

import (
	_ "embed"
)

// ProjectConfigTemplate is the example .shelfsearch.yaml written by setup
// tooling and shown in documentation.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
