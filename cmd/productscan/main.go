// Package main provides the entry point for the productscan CLI.
//
// productscan discovers product page URLs on e-commerce sites. It renders
// each seed homepage in headless Chrome, classifies the links it finds,
// and falls back to a plain HTTP fetch when rendering fails.
//
// Usage:
//
//	productscan scan https://shop.example.com/
//	productscan scan --list seeds.txt --follow
//	productscan history --diff https://shop.example.com/
//
// See --help for all available options.
package main

func main() {
	Execute()
}
