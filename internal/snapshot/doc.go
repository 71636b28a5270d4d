// Package snapshot persists the set of active download jobs across restarts.
//
// A snapshot is a small SQLite file written atomically on shutdown and
// consumed (then deleted) by the next warm start. Files written before
// episode links were tracked carry no job_episodes table and load with empty
// episode lists.
package snapshot
