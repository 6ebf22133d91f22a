// Package pipeline runs a bounded feeder → workers → collector pipeline that
// partitions a record set into pass and fail outputs in parallel.
//
// One Feeder reads the record source, optionally groups it, and pushes
// WorkItems onto a bounded work queue. N Workers pop items, apply an
// optional FilterFn and the ProcessFn, and push ResultItems onto a bounded
// result queue. A single Collector drains results, counts records, writes
// valid output to the pass sink and rejected input to the fail sink, and
// reports progress.
//
// The stages share nothing but the two queues and a Flag. The first stage
// to hit a fatal error aborts the Flag; every other stage observes the
// abort at its next queue operation and returns quietly, and Run reports
// the originating error alongside a partial Summary.
//
// Completion travels through the queues as EndOfStream messages: once the
// Feeder has drained the source, one EndOfStream per worker is enqueued;
// each Worker forwards its sentinel to the result queue and stops, and the
// Collector stops after it has seen one per worker.
//
// # Usage
//
//	p, err := pipeline.New(pipeline.Stages[int, codec.Record, codec.Record]{
//	    Source:   src,
//	    Key:      pipeline.IndexKey[codec.Record](),
//	    Process:  check,
//	    PassSink: sink.FileOpener[codec.Record]("out/pass.jsonl", opts),
//	    FailSink: sink.FileOpener[codec.Record]("out/fail.jsonl", opts),
//	}, pipeline.DefaultConfig(), pipeline.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	summary, err := p.Run(ctx)
package pipeline
