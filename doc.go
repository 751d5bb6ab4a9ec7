// Package ygggo_gamedb provides asynchronous access to the relational databases
// of a game server.
//
// # Overview
//
// Each logical database (login, character, world, hotfix) is a Database with:
//   - a StatementRegistry mapping statement ids to SQL with "?" placeholders
//   - a Worker executing queued operations strictly in enqueue order
//   - futures and callbacks polled by the game loop through a CallbackProcessor
//   - transactions retried on deadlock under a process-wide lock
//   - an Updater keeping the schema in step with a directory of migration files
//
// # Quick Start
//
//	cfg, err := gamedb.LoadFile("gamedb.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	loader, err := gamedb.NewLoaderFromConfig(cfg, map[string]gamedb.PrepareFunc{
//		"character": func(r *gamedb.StatementRegistry) {
//			r.Prepare(SelCharacter, "SELECT name, level FROM characters WHERE guid = ?")
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := loader.Load(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer loader.Close()
//
//	chars := loader.Database("character")
//	var callbacks gamedb.CallbackProcessor
//	stmt := chars.GetStatement(SelCharacter).SetUint64(0, guid)
//	callbacks.AddCallback(chars.AsyncQueryStatement(stmt).WithCallback(func(res *gamedb.ResultSet, err error) {
//		// runs on the goroutine calling ProcessReady
//	}))
//
//	for range ticker.C {
//		callbacks.ProcessReady()
//	}
//
// # Configuration
//
// Configuration is read from yaml and overridden by environment variables
// prefixed YGGGO_GAMEDB_ (e.g. YGGGO_GAMEDB_WORLD_HOST).
package ygggo_gamedb
