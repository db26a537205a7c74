// Package arclight is a client-side telemetry pipeline for AI and evaluation
// workloads. Application code starts spans describing units of work (model
// calls, tool invocations, evaluation steps); the SDK buffers the resulting
// events in a bounded queue, merges partial updates to the same logical row,
// batches them under count and byte limits, and delivers them to the
// ingestion endpoint in the background with retry and explicit loss
// accounting.
//
// Delivery is best-effort and at-least-once: telemetry must never stall the
// host application, so a full queue drops new events (countable via
// Client.DropCount) rather than blocking producers, and delivery failures
// never surface at call sites. Flush gives a best-effort delivery
// confirmation before shutdown.
//
// Span identity travels across process boundaries as an opaque handle string
// (Span.Export / Client.ResumeSpan) or, together with the otelbridge package,
// through W3C trace context headers shared with OpenTelemetry
// instrumentation.
//
// Example Usage:
//
//	client, err := arclight.New(
//		arclight.WithProject("c0ffee00-1234-4abc-9def-001122334455"),
//		arclight.WithAPIKey(os.Getenv("ARCLIGHT_API_KEY")),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(context.Background())
//
//	ctx, span := client.StartSpan(ctx, "answer-question")
//	span.Log(arclight.Fields{"input": question})
//	// ... do the work ...
//	span.Log(arclight.Fields{"output": answer})
//	span.End()
package arclight
