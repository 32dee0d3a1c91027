// Package logger provides structured logging for the fixture engine
// using zerolog.
//
// Loggers are component-scoped and take structured fields as maps, which
// keeps call sites free of zerolog's builder chain.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//	  output: "stderr"
//
// # Usage
//
//	log := logger.NewDefault("mongofixtures").WithComponent("docstore")
//	log.Debug("collection created", logger.Fields(logger.FieldCollection, "users"))
package logger
