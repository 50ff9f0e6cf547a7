package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/shaiso/procflow/internal/domain"
	"github.com/shaiso/procflow/internal/engine"
	"github.com/shaiso/procflow/internal/mq"
	"github.com/shaiso/procflow/internal/repo"
	"github.com/shaiso/procflow/internal/scheduler"
)

// openPool подключается к БД из конфигурации.
func (a *App) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := a.LoadConfig()
	if err != nil {
		return nil, err
	}
	return repo.NewPool(ctx, cfg.DBURL)
}

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := app.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := repo.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			app.output(cmd).Success("schema is up to date")
			return nil
		},
	}
}

func newWorkflowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage stored workflows",
	}
	cmd.AddCommand(newWorkflowCreateCmd(app), newWorkflowShowCmd(app))
	return cmd
}

func newWorkflowCreateCmd(app *App) *cobra.Command {
	var (
		name        string
		description string
		schedule    string
		inactive    bool
	)

	cmd := &cobra.Command{
		Use:   "create FILE",
		Short: "Store a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output(cmd)

			def, err := loadPlannable(args[0])
			if err != nil {
				return err
			}
			if schedule != "" {
				if err := scheduler.ValidateSchedule(schedule); err != nil {
					return err
				}
			}
			if name == "" {
				name = args[0]
			}

			pool, err := app.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			now := time.Now().UTC()
			wf := &domain.Workflow{
				ID:          uuid.New(),
				Name:        name,
				Description: description,
				Definition:  *def,
				IsActive:    !inactive,
				Schedule:    schedule,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := repo.NewWorkflowRepo(pool).Create(cmd.Context(), wf); err != nil {
				return err
			}

			if out.JSONMode() {
				return out.JSON(wf)
			}
			out.Success("workflow %s created", wf.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Workflow name (default: file name)")
	cmd.Flags().StringVar(&description, "description", "", "Workflow description")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression (5 fields)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the workflow disabled")

	return cmd
}

func newWorkflowShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show WORKFLOW_ID",
		Short: "Show a stored workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid workflow id: %w", err)
			}

			pool, err := app.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			wf, err := repo.NewWorkflowRepo(pool).GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			next := "-"
			if wf.NextRunAt != nil {
				next = wf.NextRunAt.Format(time.RFC3339)
			}
			headers := []string{"ID", "NAME", "ACTIVE", "SCHEDULE", "NEXT_RUN", "NODES"}
			rows := [][]string{{
				wf.ID.String(), wf.Name, fmt.Sprint(wf.IsActive), wf.Schedule, next,
				fmt.Sprint(len(wf.Definition.Nodes)),
			}}
			return app.output(cmd).Print(headers, rows, wf)
		},
	}
}

func newEnqueueCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue WORKFLOW_ID",
		Short: "Create a manual execution and hand it to the workers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := app.output(cmd)

			workflowID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid workflow id: %w", err)
			}

			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			pool, err := repo.NewPool(ctx, cfg.DBURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			wf, err := repo.NewWorkflowRepo(pool).GetByID(ctx, workflowID)
			if err != nil {
				return err
			}
			if _, err := engine.Plan(&wf.Definition); err != nil {
				return fmt.Errorf("stored definition is invalid: %w", err)
			}

			exec := domain.NewExecution(wf.ID, domain.TriggerManual)
			if err := repo.NewExecutionRepo(pool).Create(ctx, exec); err != nil {
				return err
			}

			if err := publishRequested(ctx, app, cmd, cfg.RabbitMQURL, exec); err != nil {
				out.Warn("execution stored but not published (%v); workers will pick it up by polling", err)
			}

			if out.JSONMode() {
				return out.JSON(exec)
			}
			out.Success("execution %s enqueued", exec.ID)
			return nil
		},
	}
}

func publishRequested(ctx context.Context, app *App, cmd *cobra.Command, url string, exec *domain.Execution) error {
	logger := app.logger(cmd)

	conn, err := mq.NewConnection(url, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := mq.SetupTopology(ctx, conn); err != nil {
		return err
	}
	return mq.NewPublisher(conn, logger).PublishExecutionRequested(ctx, exec.ID, exec.WorkflowID)
}

func newLogsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logs EXECUTION_ID",
		Short: "Show execution status and audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := app.output(cmd)

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid execution id: %w", err)
			}

			pool, err := app.openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			exec, err := repo.NewExecutionRepo(pool).GetByID(ctx, id)
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("execution %s not found", id)
			}
			if err != nil {
				return err
			}

			logs, err := repo.NewLogRepo(pool).ListByExecution(ctx, id)
			if err != nil {
				return err
			}

			if out.JSONMode() {
				return out.JSON(LocalRun{Execution: exec, Logs: logs})
			}
			out.Status(exec)
			return out.Logs(logs)
		},
	}
}
