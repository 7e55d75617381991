// Package main runs the demo model server: every artifact in the models
// directory is served at POST /models/<name>, so hub services can point
// their executable_url at it.
package main
