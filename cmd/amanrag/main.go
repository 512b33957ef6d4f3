// amanrag is a local document retrieval engine: it chunks, embeds, and
// indexes text documents, then serves hybrid (keyword + semantic) search
// over them.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/amanrag/cmd/amanrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
