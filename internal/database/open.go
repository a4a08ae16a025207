package database

// Open returns a PostgreSQL store when url is set and an SQLite store at path
// otherwise.
func Open(url, path string) (Store, error) {
	if url != "" {
		return NewPostgres(url)
	}
	return New(path)
}
