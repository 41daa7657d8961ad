package main

import (
	"log"

	"github.com/tech-arch1tect/ledgersite/app"
)

func main() {
	application, err := app.NewApp().
		WithAutoConfig().
		WithAuthCodes().
		Build()
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	application.Run()
}
