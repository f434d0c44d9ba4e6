package main

import "github.com/autopeer-io/tesla-exporter/cmd/tesla-token-setup/app"

func main() {
	app.NewApp().Run()
}
