package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/procflow/internal/domain"
	"github.com/shaiso/procflow/internal/engine"
	"github.com/shaiso/procflow/internal/orchestrator"
	"github.com/shaiso/procflow/internal/repo"
)

// LocalRun — итог локального запуска.
type LocalRun struct {
	Execution *domain.Execution     `json:"execution"`
	Logs      []domain.ExecutionLog `json:"logs"`
}

func newRunCmd(app *App) *cobra.Command {
	var (
		vars     []string
		varsFile string
	)

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a workflow definition locally (in-memory, no database)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output(cmd)

			def, err := engine.LoadDefinitionFile(args[0])
			if err != nil {
				return err
			}

			variables := map[string]any{}
			if varsFile != "" {
				if variables, err = loadVarsFile(varsFile); err != nil {
					return err
				}
			}
			overrides, err := ParseVars(vars)
			if err != nil {
				return err
			}
			for k, v := range overrides {
				variables[k] = v
			}

			result, err := RunLocal(cmd, app, filepath.Base(args[0]), def, variables)
			if err != nil {
				return err
			}

			if out.JSONMode() {
				if err := out.JSON(result); err != nil {
					return err
				}
			} else {
				out.Status(result.Execution)
				if result.Execution.ResultData != nil {
					if err := out.JSON(result.Execution.ResultData); err != nil {
						return err
					}
				}
				if err := out.Logs(result.Logs); err != nil {
					return err
				}
			}

			if result.Execution.Status != domain.ExecutionStatusSuccess {
				return ErrExecutionFailed
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&vars, "var", nil, "Global variable KEY=VALUE (VALUE parsed as JSON when possible)")
	cmd.Flags().StringVar(&varsFile, "vars-file", "", "YAML or JSON file with global variables")

	return cmd
}

// RunLocal выполняет определение на хранилище в памяти.
// Ошибка возвращается только если execution не удалось провести
// до финального статуса.
func RunLocal(cmd *cobra.Command, app *App, name string, def *domain.WorkflowDefinition, vars map[string]any) (*LocalRun, error) {
	ctx := cmd.Context()
	store := repo.NewMemoryStore()

	wf := &domain.Workflow{ID: uuid.New(), Name: name, Definition: *def, IsActive: true}
	if err := store.Workflows().Create(ctx, wf); err != nil {
		return nil, err
	}

	exec := domain.NewExecution(wf.ID, domain.TriggerManual)
	if err := store.Executions().Create(ctx, exec); err != nil {
		return nil, err
	}

	eng, err := orchestrator.New(orchestrator.Config{
		Factory:  app.Factory,
		Recorder: store,
		Logger:   app.logger(cmd),
	})
	if err != nil {
		return nil, err
	}

	vars["workflow"] = map[string]any{"id": wf.ID.String(), "name": wf.Name}

	if _, err := eng.Execute(ctx, def, exec.ID, orchestrator.WithVariables(vars)); err != nil {
		var execErr *orchestrator.ExecutionError
		if !errors.As(err, &execErr) {
			return nil, err
		}
	}

	final, err := store.Executions().GetByID(ctx, exec.ID)
	if err != nil {
		return nil, err
	}
	logs, err := store.Logs().ListByExecution(ctx, exec.ID)
	if err != nil {
		return nil, err
	}

	return &LocalRun{Execution: final, Logs: logs}, nil
}

// ParseVars разбирает KEY=VALUE. VALUE декодируется как JSON
// (числа, bool, объекты), иначе остаётся строкой.
func ParseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: expected KEY=VALUE", pair)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		vars[key] = value
	}
	return vars, nil
}

func loadVarsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vars file: %w", err)
	}

	vars := map[string]any{}
	// YAML — надмножество JSON.
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("parse vars file %s: %w", path, err)
	}
	return vars, nil
}
