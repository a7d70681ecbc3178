package config

import (
	"context"
	"testing"
)

func TestSchemaRegistry_Register(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#CustomType: {
	field1: string
	field2: int
}
`

	if err := sr.RegisterSchema("custom", "#CustomType", customSchema); err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	ctx := context.Background()
	if err := sr.ValidateAgainstSchema(ctx, "custom", map[string]interface{}{"field1": "a", "field2": 2}); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
	if err := sr.ValidateAgainstSchema(ctx, "custom", map[string]interface{}{"field1": 3}); err == nil {
		t.Error("expected type mismatch error")
	}
}

func TestSchemaRegistry_RegisterErrors(t *testing.T) {
	sr := NewSchemaRegistry()

	if err := sr.RegisterSchema("broken", "#Broken", "#Broken: {"); err == nil {
		t.Error("expected compile error")
	}
	if err := sr.RegisterSchema("missing", "#Missing", "#Other: {a: int}"); err == nil {
		t.Error("expected missing definition error")
	}
	if err := sr.ValidateAgainstSchema(context.Background(), "nope", nil); err == nil {
		t.Error("expected unknown schema error")
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	ctx := context.Background()
	for _, name := range []string{SchemaConfig, SchemaRequest} {
		if err := sr.ValidateAgainstSchema(ctx, name, map[string]interface{}{}); err != nil {
			t.Errorf("schema %s rejects an empty document: %v", name, err)
		}
	}
}

func TestSchemaRegistry_ValidateConfig(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		doc     map[string]interface{}
		wantErr bool
	}{
		{
			name: "empty document",
			doc:  map[string]interface{}{},
		},
		{
			name: "valid document",
			doc: map[string]interface{}{
				"local_repository": "/tmp/repo",
				"catalogs":         []interface{}{"local", "internal"},
				"interactive":      false,
				"script":           map[string]interface{}{"timeout": "10s"},
				"telemetry": map[string]interface{}{
					"logging": map[string]interface{}{"level": "debug"},
					"tracing": map[string]interface{}{"sampling_rate": 0.5},
				},
			},
		},
		{
			name:    "unknown key",
			doc:     map[string]interface{}{"local_repo": "/tmp/repo"},
			wantErr: true,
		},
		{
			name:    "wrong type",
			doc:     map[string]interface{}{"interactive": "yes"},
			wantErr: true,
		},
		{
			name: "bad log level",
			doc: map[string]interface{}{
				"telemetry": map[string]interface{}{
					"logging": map[string]interface{}{"level": "verbose"},
				},
			},
			wantErr: true,
		},
		{
			name: "sampling rate out of range",
			doc: map[string]interface{}{
				"telemetry": map[string]interface{}{
					"tracing": map[string]interface{}{"sampling_rate": 3},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateConfig(ctx, tt.doc)
			if tt.wantErr {
				if err == nil {
					t.Error("expected validation error, got none")
				}
			} else if err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestSchemaRegistry_ValidateRequest(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		props   map[string]string
		wantErr bool
	}{
		{
			name: "valid request",
			props: map[string]string{
				"groupId":    "com.example",
				"artifactId": "demo-app",
				"version":    "1.0-SNAPSHOT",
				"package":    "com.example.demo",
				"author":     "someone",
			},
		},
		{
			name:    "artifactId with space",
			props:   map[string]string{"artifactId": "demo app"},
			wantErr: true,
		},
		{
			name:    "package with dash",
			props:   map[string]string{"package": "com.example.my-app"},
			wantErr: true,
		},
		{
			name:    "empty version",
			props:   map[string]string{"version": ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateRequest(ctx, tt.props)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
