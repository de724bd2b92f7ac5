// Package natsclient wraps the NATS connection shared by the broker publisher
// and the key-value metadata backend.
//
// The client connects once, initialises JetStream and exposes the few
// operations sensorstream needs:
//
//	client, err := natsclient.NewClient(url,
//	    natsclient.WithName(""),
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry),
//	)
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	_, err = client.EnsureStream(ctx, jetstream.StreamConfig{Name: "SENSORS", Subjects: subjects})
//	ack, err := client.PublishToStream(ctx, "house_2", payload, uuid.NewString())
//
// PublishToStream waits for the JetStream acknowledgement, which is the
// delivery confirmation the enrichment publisher relies on. Failures caused by
// a closed or lost connection wrap errors.ErrConnectionLost so callers can
// tell them apart from per-message failures.
//
// Integration tests start a real server with testcontainers and run under the
// "integration" build tag.
package natsclient
