// Command schema-generator writes the JSON schema for fsdispatch
// configuration files, including every registered extension section.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/grovetools/fsdispatch/config"
	"github.com/grovetools/fsdispatch/logging"
)

var log = logging.NewLogger("schema-generator")

func main() {
	outputPath := flag.String("o", filepath.Join("schema", "definitions", "fsdispatch.schema.json"), "output file")
	flag.Parse()

	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.WithError(err).Fatal("Error generating schema")
	}

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		log.WithError(err).Fatal("Error creating schema directory")
	}
	if err := os.WriteFile(*outputPath, append(schemaBytes, '\n'), 0o644); err != nil {
		log.WithError(err).Fatal("Error writing schema file")
	}

	log.WithField("path", *outputPath).Info("Generated configuration schema")
}
