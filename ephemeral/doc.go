// Package ephemeral provisions the database server fixtures run against.
//
// A Provider starts an Instance and reports its connection string. The
// external provider points at a server that already runs (a configured URI
// or the MONGO_URI environment variable) and never stops it. The docker and
// binary subpackages register throwaway servers that Stop tears down:
//
//	import _ "github.com/kbukum/mongofixtures/ephemeral/docker"
//
//	p, err := ephemeral.New(ephemeral.Config{Provider: ephemeral.ProviderDocker}, log)
//	inst, err := p.Start(ctx)
//	defer inst.Stop(ctx)
package ephemeral
