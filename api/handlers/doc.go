// Package handlers provides the JSON HTTP handlers for the job API and
// health endpoints.
package handlers
