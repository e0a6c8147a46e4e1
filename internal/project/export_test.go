package project

// SwapIDSource replaces the ID generator until the returned func runs.
func SwapIDSource(fn func() string) func() {
	prev := newID
	newID = fn
	return func() { newID = prev }
}

// Exec runs raw SQL against the store's database.
func (s *Store) Exec(query string) error {
	_, err := s.db.Exec(query)
	return err
}
