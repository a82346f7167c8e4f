/*
Package testutil provides testing utilities for the mystery protocol and
vault services.

This package contains test data generators designed to simplify writing
tests for protocol components. Fixtures are customizable through the option
pattern so test writers can focus on test logic rather than test data
generation.

# Configuration Generators

Functions for creating customizable protocol configs:

	// Create default test config (degree-4096 ring, 4 segments)
	config := testutil.NewTestConfig()

	// Create custom config with specific options
	customConfig := testutil.NewTestConfig(
	    testutil.WithPolyDegree(8192),
	    testutil.WithSegments(10),
	    testutil.WithExposedLength(64),
	)

# Data Generators

Utilities for generating random protocol inputs:

	// Generate random bytes
	randomBytes, _ := testutil.GenerateRandomBytes(32)

	// Generate a random alphabet-valid secret
	secret, _ := testutil.GenerateTestSecret(12)

	// Generate a mapping table matching a config
	table, _ := testutil.GenerateTestMapping(config, 12)

# Best Practices

1. Use the option pattern to customize test data instead of hand-building configs
2. Key generation dominates test time; build domains once and reuse them across tests
3. When testing multiple components together, share one configuration across all

This package is intended for testing purposes only and should not be used in
production code.
*/
package testutil
