// Package config loads publisher settings from the environment.
//
// Values come from environment variables through the env package. A .env file
// in the working directory (or the file named by PUBLISHER_ENV_FILE) is read
// first; variables already present in the environment win. Every setting has a
// default suitable for local development with in-memory backends.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
