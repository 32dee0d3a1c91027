package ephemeral

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/kbukum/mongofixtures/errors"
)

// External is a provider for a server that runs independently of the tests.
type External struct {
	uri string
}

// NewExternal validates uri and returns a provider for it.
func NewExternal(uri string) (*External, error) {
	if uri == "" {
		return nil, errors.InvalidConfig("external server requires a URI or " + EnvURI)
	}
	if _, err := connstring.ParseAndValidate(uri); err != nil {
		return nil, errors.InvalidConfig("invalid server URI").WithCause(err)
	}
	return &External{uri: uri}, nil
}

func (e *External) Name() string { return ProviderExternal }

// Start returns an instance for the configured URI without contacting it.
func (e *External) Start(ctx context.Context) (Instance, error) {
	return externalInstance{uri: e.uri}, nil
}

type externalInstance struct {
	uri string
}

func (i externalInstance) ConnectionString() string { return i.uri }

// Stop leaves the server running.
func (i externalInstance) Stop(ctx context.Context) error { return nil }
