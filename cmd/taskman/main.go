// Command taskman はタスク管理APIサーバー、ロック解除ワーカー、マイグレーションを起動する。
//
// 使い方:
//
//	taskman [serve|worker|migrate|healthcheck|grant-claim <email> <claim>]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/taskman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "taskman: %v\n", err)
		os.Exit(1)
	}
}
