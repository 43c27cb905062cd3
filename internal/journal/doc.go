// Package journal records every payload an edge node session publishes in
// SQLite.
//
// The journal answers two questions after the fact: what did the node send,
// and which death certificate did the broker hold as last will for a given
// session. Payload bytes are stored exactly as published so they can be
// decoded again with sparkplug.Decode.
//
// # Usage
//
//	repo := journal.NewSQLiteRepository(db.DB)
//	sess, err := session.New(transport, codec, topics,
//	    session.WithObserver(journal.NewObserver(repo)),
//	)
//
//	recent, err := repo.Recent(ctx, journal.Filter{Limit: 20})
package journal
