package app

// slot serializes one category of in-flight load. Each new request
// bumps the generation; a result stamped with an older generation
// belongs to a request the user has already superseded and is dropped.
// Slots also go stale wholesale when the account switches: next()
// invalidates everything issued before it.
type slot struct {
	gen int
}

// next starts a new request and returns its generation token.
func (s *slot) next() int {
	s.gen++
	return s.gen
}

// current reports whether a result token is still the latest request.
func (s *slot) current(gen int) bool {
	return gen == s.gen
}

// loadSlots groups the exclusive load slots of the main view. Each
// load kind cancels only its own kind: a sidebar refresh, a message
// page load, a single-message open, and a search run independently,
// so a batched folders+messages refresh applies both results. An
// account switch resets all four.
type loadSlots struct {
	folder  slot
	list    slot
	message slot
	search  slot
}

// invalidateAll makes every outstanding result stale.
func (s *loadSlots) invalidateAll() {
	s.folder.next()
	s.list.next()
	s.message.next()
	s.search.next()
}
