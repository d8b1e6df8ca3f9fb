// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command campusmind is the operator CLI for a Campusmind deployment.
//
// It talks to a running assistant service over HTTP: ask one-off
// questions, hold an interactive chat session, feed documents into the
// vector store, and inspect service health.
//
// # Usage
//
//	campusmind ask "What does MLT stand for?"
//	campusmind chat
//	campusmind documents ingest ./handbook.txt
//	campusmind documents crawl https://program.example.edu
//
// Connection settings come from campusmind.yaml in the working directory
// when present, otherwise from defaults (localhost:12310) and the
// --server flag.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
