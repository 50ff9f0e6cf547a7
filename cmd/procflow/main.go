// procflow — CLI для workflow definitions.
//
// Локально (без БД):
//   - validate — проверка определения
//   - order — порядок выполнения узлов
//   - run — выполнение в памяти
//
// С БД и брокером: migrate, workflow create/show, enqueue, logs.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/shaiso/procflow/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRootCmd(version, &cli.App{}).Execute(); err != nil {
		if !errors.Is(err, cli.ErrExecutionFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
