/*
Package collector implements the agent side of the collector wire protocol.

# Wire Format

Every remote method is an HTTP POST to

	/agent_listener/{protocol_version}/{license_key}/{method}?marshal_format=json[&run_id={run_id}]

with a JSON array of positional arguments as the body. The collector answers
with exactly one of

	{"exception": {"error_type": "...", "message": "..."}}
	{"return_value": ...}

Channel frames single calls and maps failures onto the agenterr taxonomy.
Session drives the connect handshake (get_redirect_host, then connect),
owns the run id and the merged Configuration, and performs a best-effort
shutdown.

# Usage

	channel := collector.NewChannel(collector.ChannelConfig{
	    Host:       "collector.newrelic.com",
	    Port:       80,
	    LicenseKey: key,
	})
	session := collector.NewSession(channel, collector.DetectEnvironment(apps))
	if err := session.Connect(ctx); err != nil {
	    return err
	}
	defer session.Shutdown(context.Background())

	_, err := session.Invoke(ctx, "transaction_sample_data", samples)

Retry, backoff and timeouts beyond the per-call HTTP timeout belong to the
caller, usually the harvest loop.
*/
package collector
