// Command enrichflow runs the enrichment job server.
//
// Usage:
//
//	enrichflow serve                       # start the server
//	enrichflow serve --config config.yaml  # with a config file
//	enrichflow version                     # show version information
//	enrichflow health                      # probe a running server
package main
