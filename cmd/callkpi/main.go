// Command callkpi turns stored call transcripts into intra-call and inter-call
// analytics tables.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
