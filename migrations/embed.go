// Package migrations embeds the SensorHub schema into the binary and
// registers it with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.Register(migrationsFS, ".")
}
