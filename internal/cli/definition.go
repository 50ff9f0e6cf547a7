package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/procflow/internal/domain"
	"github.com/shaiso/procflow/internal/engine"
)

func newValidateCmd(app *App) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a workflow definition (JSON or YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output(cmd)

			def, err := loadPlannable(args[0])
			if err != nil {
				return err
			}

			unknown := unknownTypes(app, def)
			for _, u := range unknown {
				out.Warn("node %q has unregistered type %q", u.ID, u.Type)
			}
			if strict && len(unknown) > 0 {
				return fmt.Errorf("%d node(s) with unregistered type", len(unknown))
			}

			if out.JSONMode() {
				return out.JSON(map[string]any{
					"valid":         true,
					"nodes":         len(def.Nodes),
					"edges":         len(def.Edges),
					"unknown_types": len(unknown),
				})
			}

			out.Success("%s is valid: %d nodes, %d edges", args[0], len(def.Nodes), len(def.Edges))
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on node types that are not registered")

	return cmd
}

func newOrderCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "order FILE",
		Short: "Print the execution order of a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output(cmd)

			def, err := engine.LoadDefinitionFile(args[0])
			if err != nil {
				return err
			}

			order, err := engine.Plan(def)
			if err != nil {
				return err
			}

			rows := make([][]string, len(order))
			for i, id := range order {
				node, _ := def.Node(id)
				rows[i] = []string{strconv.Itoa(i + 1), id, node.Type, policyLabel(node.OnError)}
			}

			return out.Print([]string{"#", "NODE", "TYPE", "ON_ERROR"}, rows, order)
		},
	}
}

// loadPlannable читает файл и проверяет, что по нему можно построить план.
func loadPlannable(path string) (*domain.WorkflowDefinition, error) {
	def, err := engine.LoadDefinitionFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := engine.Plan(def); err != nil {
		return nil, err
	}
	return def, nil
}

func unknownTypes(app *App, def *domain.WorkflowDefinition) []domain.NodeDef {
	var unknown []domain.NodeDef
	for _, n := range def.Nodes {
		if !app.Factory.Has(n.Type) {
			unknown = append(unknown, n)
		}
	}
	return unknown
}

func policyLabel(p domain.ErrorPolicy) string {
	if p == "" {
		return string(domain.ErrorPolicyAbort)
	}
	return string(p)
}
