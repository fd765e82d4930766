////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package main

import (
	"fmt"
	"os"
)

func main() {
	// runRoot handles every configuration and startup failure itself (it
	// calls os.Exit(exitConfig) directly) and otherwise returns nil, so the
	// only error Execute() can surface here is a cobra/pflag flag-parsing
	// failure — a Configuration error per spec.md §6/§7, not an internal one.
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sslcaudit: %v\n", err)
		os.Exit(exitConfig)
	}
}
