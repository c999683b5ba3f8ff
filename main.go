package main

import (
	"os"

	"github.com/tenantauth/tenantauth/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
