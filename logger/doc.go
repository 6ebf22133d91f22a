// Package logger provides structured logging for sieve using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers. Pipeline stages tag their loggers with the
// component names pipeline.feeder, pipeline.worker and pipeline.collector,
// and with the run ID of the pipeline run they belong to.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("sieve").WithComponent("pipeline")
//	log.Info("run started", logger.Fields(logger.FieldRunID, id))
package logger
