package watch

// SnapshotStore persists last-applied tool sets across restarts so a
// new process can purge tools it registered in a previous life. All
// calls are best-effort from the engine's point of view.
type SnapshotStore interface {
	Load() (map[string][]string, error)
	Save(service string, tools []string) error
	Delete(service string) error
}
