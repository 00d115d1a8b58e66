// manifold/main.go
package main

import (
	"embed"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pterm/pterm"
)

//go:embed frontend/dist
var frontendDist embed.FS

func main() {
	config, err := LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config.yaml: %v", err)
	}

	if err := InitializeApplication(config); err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	registerRoutes(e, config)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	pterm.Info.Printf("Starting manifold on %s\n", addr)
	e.Logger.Fatal(e.Start(addr))
}
