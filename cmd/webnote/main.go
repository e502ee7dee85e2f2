// Command webnote はSupabaseを認証基盤・データストアとするノートWebアプリケーション。
//
// 使い方:
//
//	webnote [serve|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/webnote/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "webnote: %v\n", err)
		os.Exit(1)
	}
}
