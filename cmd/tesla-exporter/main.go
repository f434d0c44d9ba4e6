package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/tesla-exporter/cmd/tesla-exporter/app"
)

func main() {
	app.NewApp().Run()
}
