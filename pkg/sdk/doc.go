// Package vecshift is a Go client for live OpenSearch schema migrations.
//
// A migration adds knn_vector fields to an index that serves traffic through
// an alias: vecshift creates a new index with the extended mapping, reindexes
// into it, verifies counts and a sample of documents, and moves the alias in
// one atomic call. Any failure points the alias back at the source index.
//
//	client, _ := vecshift.New(ctx,
//	    vecshift.WithOpenSearch("https://search:9200"),
//	    vecshift.WithBasicAuth("admin", os.Getenv("OPENSEARCH_PASSWORD")),
//	    vecshift.WithRedisAudit("localhost:6379", ""),
//	)
//	defer client.Close(ctx)
//
//	run, err := client.Migrate(ctx, vecshift.MigrationPlan{
//	    Source: "docs-v1",
//	    Target: "docs-v2",
//	    Alias:  "docs",
//	    VectorFields: []vecshift.VectorField{
//	        {Name: "embedding", Dimension: 384, SpaceType: vecshift.SpaceCosine},
//	    },
//	    CountTolerance:       vecshift.Float(0),
//	    SampleSize:           1000,
//	    SampleMatchThreshold: vecshift.Float(1),
//	    SnapshotRepository:   "backups",
//	})
//
// Migrate blocks until the run is terminal. When it did not complete, err is
// the stage failure and run still carries its state, error and report:
//
//	if err != nil && run.ID != "" {
//	    log.Printf("run %s ended %s: %s", run.ID, run.State, run.LastError)
//	}
//
// Start returns immediately and the run is observed with Run and Audit.
package vecshift
