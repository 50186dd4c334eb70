package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/skypro1111/mic-capture-service/internal/capture"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	acquirer := capture.NewAcquirer(logger)
	devices, err := acquirer.ListInputDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list input devices: %v\n", err)
		os.Exit(1)
	}

	if len(devices) == 0 {
		fmt.Println("No input devices found")
		return
	}

	fmt.Println("Available input devices:")
	for _, d := range devices {
		fmt.Printf("  %-4s %s\n", d.ID, d.Label)
	}
}
