// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pcbuild-service/internal/common/validation"
)

func LoadRegistry(path string) (*TaskRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TaskRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

func SaveRegistry(reg *TaskRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Find returns the task declared for a Zeebe task type.
func (r *TaskRegistry) Find(taskType string) (*Task, bool) {
	for i := range r.Tasks {
		if r.Tasks[i].TaskType == taskType {
			return &r.Tasks[i], true
		}
	}
	return nil, false
}

// Validate checks required fields, duplicate IDs and task types, and that
// every declared schema compiles.
func (r *TaskRegistry) Validate() error {
	if len(r.Tasks) == 0 {
		return fmt.Errorf("registry contains no tasks")
	}

	ids := make(map[string]bool)
	types := make(map[string]bool)
	for _, task := range r.Tasks {
		if task.ID == "" {
			return fmt.Errorf("task missing required field: ID")
		}
		if ids[task.ID] {
			return fmt.Errorf("duplicate task ID: %s", task.ID)
		}
		ids[task.ID] = true

		if task.DisplayName == "" {
			return fmt.Errorf("task %s missing required field: DisplayName", task.ID)
		}
		if task.TaskType == "" {
			return fmt.Errorf("task %s missing required field: TaskType", task.ID)
		}
		if types[task.TaskType] {
			return fmt.Errorf("duplicate task type: %s", task.TaskType)
		}
		types[task.TaskType] = true

		if task.Timeout != "" {
			if _, err := time.ParseDuration(task.Timeout); err != nil {
				return fmt.Errorf("task %s has invalid timeout %q: %w", task.ID, task.Timeout, err)
			}
		}
		for name, schema := range map[string]map[string]interface{}{"inputSchema": task.InputSchema, "outputSchema": task.OutputSchema} {
			if len(schema) == 0 {
				continue
			}
			if _, err := validation.Compile(schema); err != nil {
				return fmt.Errorf("task %s %s: %w", task.ID, name, err)
			}
		}
	}
	return nil
}

// Validator checks job variables against the registered input schemas.
type Validator struct {
	schemas map[string]*validation.Schema
}

func NewValidator(reg *TaskRegistry) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*validation.Schema)}
	for _, task := range reg.Tasks {
		if len(task.InputSchema) == 0 {
			continue
		}
		s, err := validation.Compile(task.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("task %s input schema: %w", task.ID, err)
		}
		v.schemas[task.TaskType] = s
	}
	return v, nil
}

// ValidateInput reports schema violations of raw job variables. Task types
// without a schema always pass.
func (v *Validator) ValidateInput(taskType string, variables []byte) (*validation.ValidationResult, error) {
	s, ok := v.schemas[taskType]
	if !ok {
		return &validation.ValidationResult{Valid: true}, nil
	}
	var doc interface{}
	if err := json.Unmarshal(variables, &doc); err != nil {
		return nil, fmt.Errorf("decode variables: %w", err)
	}
	return s.Validate(doc)
}
