// Command stockscan runs ranked stock scans against the scanning backend,
// exports them as CSV, or serves the scanner view.
//
// Usage:
//
//	stockscan serve [--listen :8080] [--backend http://localhost:8000]
//	stockscan scan --type VolumeRank --date 2024-03-01 --count 50
//	stockscan export --date 2024-03-01 --out ./downloads
//	stockscan version
package main

import "github.com/raysh454/stockscan/internal/cli"

func main() {
	cli.Execute()
}
