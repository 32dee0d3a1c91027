package fixtures

import (
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

const defaultDatabase = "test"

// databaseName picks, in order: the configured name, a random isolated name,
// the database in the URI path, and "test".
func databaseName(cfg MongoConfig, uri string) string {
	if cfg.Database != "" {
		return cfg.Database
	}
	if cfg.Isolated {
		return "fixtures_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if cs, err := connstring.Parse(uri); err == nil && cs.Database != "" {
		return cs.Database
	}
	return defaultDatabase
}

// externalMechanisms authenticate against $external whatever the path says.
var externalMechanisms = map[string]bool{
	"MONGODB-X509": true,
	"MONGODB-AWS":  true,
	"MONGODB-OIDC": true,
	"GSSAPI":       true,
	"PLAIN":        true,
}

// withDatabase returns uri with its path set to db, keeping hosts and options.
// Credentials authenticate against the path database unless authSource says
// otherwise, so when the path changes the old database, or admin, is kept as
// authSource.
func withDatabase(uri, db string) string {
	rest, query, hasQuery := strings.Cut(uri, "?")
	scheme, hosts, ok := strings.Cut(rest, "://")
	if !ok {
		return uri
	}
	hosts, oldDB, _ := strings.Cut(hosts, "/")

	if oldDB != db && needsAuthSource(hosts, query) {
		if oldDB == "" {
			oldDB = "admin"
		}
		if query != "" {
			query += "&"
		}
		query += "authSource=" + oldDB
		hasQuery = true
	}

	out := scheme + "://" + hosts + "/" + db
	if hasQuery {
		out += "?" + query
	}
	return out
}

// needsAuthSource reports whether hosts carries credentials whose source
// follows the path database.
func needsAuthSource(hosts, query string) bool {
	if !strings.Contains(hosts, "@") {
		return false
	}
	for _, opt := range strings.Split(query, "&") {
		key, value, _ := strings.Cut(opt, "=")
		switch strings.ToLower(key) {
		case "authsource":
			return false
		case "authmechanism":
			if externalMechanisms[strings.ToUpper(value)] {
				return false
			}
		}
	}
	return true
}
