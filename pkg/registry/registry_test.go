package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry_ShippedFile(t *testing.T) {
	reg, err := LoadRegistry("../../configs/task-registry.json")
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	task, ok := reg.Find("generate-build")
	require.True(t, ok)
	assert.Equal(t, "Generate PC Build", task.DisplayName)

	_, ok = reg.Find("render-invoice")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	base := func() *TaskRegistry {
		return &TaskRegistry{Tasks: []Task{{ID: "a", DisplayName: "A", TaskType: "a"}}}
	}

	tests := []struct {
		name   string
		mutate func(r *TaskRegistry)
		errMsg string
	}{
		{name: "valid", mutate: func(r *TaskRegistry) {}},
		{name: "empty", mutate: func(r *TaskRegistry) { r.Tasks = nil }, errMsg: "no tasks"},
		{name: "missing id", mutate: func(r *TaskRegistry) { r.Tasks[0].ID = "" }, errMsg: "ID"},
		{name: "missing display name", mutate: func(r *TaskRegistry) { r.Tasks[0].DisplayName = "" }, errMsg: "DisplayName"},
		{name: "duplicate task type", mutate: func(r *TaskRegistry) {
			r.Tasks = append(r.Tasks, Task{ID: "b", DisplayName: "B", TaskType: "a"})
		}, errMsg: "duplicate task type"},
		{name: "bad timeout", mutate: func(r *TaskRegistry) { r.Tasks[0].Timeout = "soon" }, errMsg: "invalid timeout"},
		{name: "bad schema", mutate: func(r *TaskRegistry) {
			r.Tasks[0].InputSchema = map[string]interface{}{"type": "nonsense"}
		}, errMsg: "inputSchema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base()
			tt.mutate(r)
			err := r.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidator_ValidateInput(t *testing.T) {
	reg, err := LoadRegistry("../../configs/task-registry.json")
	require.NoError(t, err)
	v, err := NewValidator(reg)
	require.NoError(t, err)

	res, err := v.ValidateInput("generate-build", []byte(`{"budget": 250000}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.ValidateInput("generate-build", []byte(`{"budget": 0}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = v.ValidateInput("estimate-fps", []byte(`{"componentNames": [], "gameNames": ["CS2"]}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = v.ValidateInput("unregistered", []byte(`not even json`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = v.ValidateInput("generate-build", []byte(`{`))
	assert.Error(t, err)
}

func TestSaveRegistry_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	reg := &TaskRegistry{Version: "1.0.0", Tasks: []Task{{ID: "a", DisplayName: "A", TaskType: "a"}}}
	require.NoError(t, SaveRegistry(reg, path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg.Tasks, loaded.Tasks)
	assert.NotEmpty(t, loaded.LastUpdated)
}
