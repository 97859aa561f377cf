package main

import (
	"context"
	"log"
	"os"

	"github.com/hatemjaber/image-resize-server/internal/server"
	"github.com/hatemjaber/image-resize-server/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := server.NewApp(ctx, cfg, os.Stdout)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	app.Run(ctx)

}
