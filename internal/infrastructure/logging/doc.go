// Package logging builds the agent's structured zap logger.
//
// Production mode writes JSON to stderr so the agent never interleaves with
// the monitored application's stdout. Development mode writes colored console
// output. Every entry is named "monitor" and carries the monitored
// application names when they are known.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "debug", AppNames: apps})
//	if err != nil {
//		return err
//	}
//	logger.Info("connected to collector", zap.Int64("run_id", runID))
package logging
