package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pcbuild-service/pkg/registry"
)

var (
	registryPath string
	setID        string
	setField     string
	setValue     string
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Validate and edit the task registry",
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check required fields, duplicates, timeouts and input schemas",
	RunE:  runRegistryValidate,
}

var registrySetCmd = &cobra.Command{
	Use:     "set",
	Short:   "Update one field of a registered task",
	Example: `  pcbuildctl registry set --id generate-build --field status --value verified`,
	RunE:    runRegistrySet,
}

func init() {
	registryCmd.PersistentFlags().StringVar(&registryPath, "path", "configs/task-registry.json", "path to registry file")

	registrySetCmd.Flags().StringVar(&setID, "id", "", "task ID")
	registrySetCmd.Flags().StringVar(&setField, "field", "", "status, version, displayName, description, category, timeout or retries")
	registrySetCmd.Flags().StringVar(&setValue, "value", "", "new value")
	_ = registrySetCmd.MarkFlagRequired("id")
	_ = registrySetCmd.MarkFlagRequired("field")

	registryCmd.AddCommand(registryValidateCmd, registrySetCmd)
}

func runRegistryValidate(cmd *cobra.Command, args []string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d tasks.\n", len(reg.Tasks))
	return nil
}

func runRegistrySet(cmd *cobra.Command, args []string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := setTaskField(reg, setID, setField, setValue); err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("registry would become invalid: %w", err)
	}
	if err := registry.SaveRegistry(reg, registryPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s, field %s to %s\n", setID, setField, setValue)
	return nil
}

func setTaskField(reg *registry.TaskRegistry, id, field, value string) error {
	var task *registry.Task
	for i := range reg.Tasks {
		if reg.Tasks[i].ID == id {
			task = &reg.Tasks[i]
			break
		}
	}
	if task == nil {
		return fmt.Errorf("task with ID %s not found", id)
	}

	switch field {
	case "status":
		task.ImplementationStatus = value
	case "version":
		task.Version = value
	case "displayName":
		task.DisplayName = value
	case "description":
		task.Description = value
	case "category":
		task.Category = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		task.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		task.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	return nil
}
