// Package migrations embeds the SQL schema for the device directory and
// scene store so the binaries migrate without files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/iot-device-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
