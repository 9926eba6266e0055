// Command hmmtrain trains and applies isolated-word Gaussian HMMs.
//
// Usage:
//
//	hmmtrain [flags] <command> [args]
//
// Commands:
//
//	train      - Train one model per word from a feature directory
//	recognize  - Score feature files against every stored word model
//	list       - Show stored word models
//	export     - Write stored models as gob files
//	sample     - Generate synthetic feature sequences from a stored model
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
