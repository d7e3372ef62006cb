// Package config holds all configuration for the scanner.
//
// Configuration comes from three layers, lowest precedence first:
//  1. Built-in defaults (NewConfig)
//  2. Environment variables, optionally loaded from a .env file
//     (ApplyEnv; START_URL, CRAWL_MAX_DEPTH, CRAWL_CONCURRENCY,
//     OPENAI_API_KEY, MODEL_NAME/OPENAI_MODEL, REPORT_DIR)
//  3. CLI flags, applied by the cmd package
//
// A YAML site configuration file (.webscan) can additionally supply
// per-site cookies, headers, crawl depth and URL patterns.
package config
