// Package main is the entry point for the LinkVault service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/linkvault/cmd/rag/app"
)

func main() {
	app.NewApp().Run()
}
