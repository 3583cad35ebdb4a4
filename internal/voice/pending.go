package voice

import "log/slog"

// pendingCommands correlates dispatched command ids with reply slots awaiting
// exactly one terminal outcome.
type pendingCommands struct {
	entries map[int32]chan<- error
	logger  *slog.Logger
}

func newPendingCommands(logger *slog.Logger) *pendingCommands {
	return &pendingCommands{
		entries: make(map[int32]chan<- error),
		logger:  logger,
	}
}

func (p *pendingCommands) track(id int32, reply chan<- error) {
	p.entries[id] = reply
}

// succeed resolves the entry for id with success and removes it.
func (p *pendingCommands) succeed(id int32) bool {
	return p.resolve(id, nil)
}

// fail resolves the entry for id with err and removes it.
func (p *pendingCommands) fail(id int32, err error) bool {
	return p.resolve(id, err)
}

func (p *pendingCommands) resolve(id int32, err error) bool {
	reply, ok := p.entries[id]
	if !ok {
		return false
	}
	delete(p.entries, id)
	sendReply(reply, err)
	return true
}

// failAll resolves every remaining entry with err and empties the table.
// No entry may survive a reconnect cycle with stale state.
func (p *pendingCommands) failAll(err error) int {
	count := len(p.entries)
	for id, reply := range p.entries {
		delete(p.entries, id)
		sendReply(reply, err)
	}
	return count
}

func (p *pendingCommands) size() int {
	return len(p.entries)
}

// sendReply delivers to a single-use slot without ever blocking the worker.
// Slots are buffered with capacity one and resolved exactly once, so the
// default branch only fires on a contract violation.
func sendReply[T any](reply chan<- T, value T) {
	select {
	case reply <- value:
	default:
	}
}
