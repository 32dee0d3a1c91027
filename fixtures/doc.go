// Package fixtures loads test fixtures into MongoDB and reads them back.
//
// A Fixtures instance owns one database and, when GridFS is enabled, one
// bucket in it. Populate and PopulateFiles always start from empty
// collections or an empty bucket, Dump and DumpFiles return what is stored,
// and Clear and ClearFiles wipe it again. The two sides are independent:
// Populate and Clear leave the bucket's collections alone, and ClearFiles
// leaves the other collections alone. Close drops the whole database.
//
// The server comes from Config.Server: an external one named by mongo.uri or
// MONGO_URI, or a throwaway one started in a docker container or as a local
// mongod process. Close stops a throwaway server.
//
//	fx, err := fixtures.Open(ctx, fixtures.Config{
//		Mongo:  fixtures.MongoConfig{Isolated: true},
//		GridFS: fixtures.GridFSConfig{Enabled: true},
//	})
//	if err != nil {
//		t.Fatal(err)
//	}
//	defer fx.Close(ctx)
//
//	err = fx.Populate(ctx, fixture.Set{
//		"users": {{{Key: "name", Value: "ada"}}},
//	})
//
// Fixtures implements testutil.TestComponent, so testutil.T(t).Setup(fx)
// starts it and closes it when the test ends.
package fixtures
