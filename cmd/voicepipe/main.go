package main

import (
	"fmt"
	"os"

	"voicepipe/cmd/voicepipe/cmd"
	"voicepipe/internal/config"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Configuration Warning: %v\n", err)
		// Continue execution - transcription providers validate their own keys
	}

	cmd.Execute()
}
