// Package config provides the configuration for productscan: crawl
// timeouts and limits, output locations, the optional .productscan YAML
// file with per-site overrides, and seed list parsing.
package config
