package main

import (
	"log"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/startup"
)

func main() {
	if err := startup.Initialize(); err != nil {
		log.Fatalf("Backend startup failed: %v", err)
	}

	log.Println("Backend has shut down gracefully.")
}
