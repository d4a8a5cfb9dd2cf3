package db

// Repositories provides access to all database repositories
type Repositories struct {
	Content *ContentRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Content: NewContentRepository(db),
	}
}
