package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity stop an operation.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Operations a policy can be evaluated for.
const (
	OperationGenerate = "generate"
	OperationCreate   = "create"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Operations limits the policy to some operations; empty means all.
	Operations []string `json:"operations,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliesTo reports whether the policy is evaluated for operation.
func (p *Policy) AppliesTo(operation string) bool {
	if len(p.Operations) == 0 {
		return true
	}
	for _, op := range p.Operations {
		if op == operation {
			return true
		}
	}
	return false
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Subject is the offending property (e.g., "artifactId").
	Subject string `json:"subject,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the result of policy evaluation.
type Result struct {
	// Allowed indicates if the operation is allowed.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists violations that don't block operations.
	Warnings []Violation `json:"warnings,omitempty"`

	// Failures lists policies that could not be evaluated.
	Failures []string `json:"failures,omitempty"`

	// EvaluatedAt is when the policy was evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document policies see as `input`.
type Input struct {
	// Operation is OperationGenerate or OperationCreate.
	Operation string `json:"operation"`

	// Request describes the project being generated or the archetype
	// being created.
	Request RequestInput `json:"request"`

	// Context provides additional evaluation context.
	Context *Context `json:"context"`
}

// RequestInput carries the coordinates and properties under evaluation.
type RequestInput struct {
	GroupID    string            `json:"groupId"`
	ArtifactID string            `json:"artifactId"`
	Version    string            `json:"version"`
	Package    string            `json:"package"`
	Properties map[string]string `json:"properties"`
	Archetype  string            `json:"archetype,omitempty"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// User is the user performing the operation.
	User string `json:"user,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Interactive is set when the request was answered at a prompt.
	Interactive bool `json:"interactive"`
}
