package main

import "github.com/autopeer-io/tesla-exporter/cmd/tesla-partner-register/app"

func main() {
	app.NewApp().Run()
}
