// Command heliosdb runs the server: loads the configured snapshot file
// if one exists, then listens for RESP clients until killed.
package main

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/heliosdb/heliosdb/internal/commands"
	"github.com/heliosdb/heliosdb/internal/rdb"
	"github.com/heliosdb/heliosdb/internal/server"
	"github.com/heliosdb/heliosdb/internal/store"
)

// blockResolution is how often the executor re-checks outstanding
// BLPOP/XREAD BLOCK waiters for expiry; see internal/server's own
// background-cadence constants for the reaper side of this.
const blockResolution = 10 * time.Millisecond

func main() {
	cfg := server.ReadConfig()

	engine := store.NewEngine(blockResolution)

	if loaded, err := rdb.LoadDatabase(cfg.Path()); err == nil {
		engine.Restore(loaded.Snapshot)
		log.Printf("Loaded snapshot from %s", cfg.Path())
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Printf("Not loading snapshot from %s: %v", cfg.Path(), err)
	}

	srv := server.NewServer(cfg, engine)
	commands.SetSnapshotWriter(srv.SnapshotWriter())

	log.Printf("Listening on port %s", cfg.Port)
	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}
