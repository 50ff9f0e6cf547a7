package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shaiso/procflow/internal/config"
	"github.com/shaiso/procflow/internal/nodes"
	"github.com/shaiso/procflow/internal/telemetry"
)

// ErrExecutionFailed — локальный запуск завершился статусом failed.
// Детали уже выведены, main только выставляет код возврата.
var ErrExecutionFailed = errors.New("execution failed")

// App — общие зависимости команд.
//
// Поля заполняются после разбора PersistentFlags, поэтому команды
// получают их через замыкания, а не при построении дерева.
type App struct {
	jsonOutput bool
	logLevel   string

	// Factory — фабрика узлов для локальных запусков.
	Factory *nodes.Factory

	// LoadConfig читает конфигурацию для команд, работающих с БД и брокером.
	LoadConfig func() (*config.Config, error)
}

// NewRootCmd собирает дерево команд procflow.
func NewRootCmd(version string, app *App) *cobra.Command {
	if app.Factory == nil {
		app.Factory = DefaultFactory()
	}
	if app.LoadConfig == nil {
		app.LoadConfig = config.Load
	}

	root := &cobra.Command{
		Use:           "procflow",
		Short:         "procflow: workflow automation engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "Output in JSON format")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "WARNING", "Engine log level (DEBUG, INFO, WARNING, ERROR)")

	root.AddCommand(
		newValidateCmd(app),
		newOrderCmd(app),
		newRunCmd(app),
		newWorkflowCmd(app),
		newEnqueueCmd(app),
		newLogsCmd(app),
		newMigrateCmd(app),
	)

	return root
}

// DefaultFactory — встроенные узлы плюс transform.
func DefaultFactory() *nodes.Factory {
	f := nodes.DefaultFactory()
	f.Register(nodes.TypeTransform, nodes.NewTransformNode)
	return f
}

func (a *App) output(cmd *cobra.Command) *Output {
	return NewOutput(a.jsonOutput, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// logger пишет логи движка в stderr текстом, чтобы не смешивать их с данными.
func (a *App) logger(cmd *cobra.Command) *slog.Logger {
	return telemetry.NewLogger(cmd.ErrOrStderr(), a.logLevel, "text")
}
