//go:build ignore

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/policyforge/wspolicy/internal/document"
	"github.com/policyforge/wspolicy/internal/translator"
)

// Generates the golden normalized policy from the transport fixtures
func main() {
	reg, err := document.LoadFiles([]string{
		"testdata/policies/transport.yaml",
		"testdata/policies/common.yaml",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load failed: %v\n", err)
		os.Exit(1)
	}

	t, err := translator.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Translator failed: %v\n", err)
		os.Exit(1)
	}

	p, err := t.Translate(context.Background(), reg.RetrieveModel("testdata/policies/transport.yaml#secure"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Translate failed: %v\n", err)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Marshal failed: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile("testdata/golden/transport.normalized.json", append(data, '\n'), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Golden file generated: testdata/golden/transport.normalized.json")
}
