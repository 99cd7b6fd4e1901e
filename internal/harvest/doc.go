/*
Package harvest reports finished transactions to the collector.

A Harvester is a trace.Recorder: the instrumentation adapters hand it every
ended transaction and it keeps a bounded buffer of samples. Run connects the
collector session, retrying with exponential backoff, then sends the buffer
once per data report period as a single transaction_sample_data call.

	h := harvest.New(session, harvest.WithMaxSamples(100), harvest.WithLogger(logger))
	router.Use(trace.GinMiddleware(h, logger))
	go h.Run(ctx)

Samples are kept across network and HTTP failures and discarded when the
collector rejects them. A ForceRestartException reconnects the session;
a ForceDisconnectException ends Run.
*/
package harvest
