package fixtures

// Register the docker and binary server providers.
import (
	_ "github.com/kbukum/mongofixtures/ephemeral/binary"
	_ "github.com/kbukum/mongofixtures/ephemeral/docker"
)
