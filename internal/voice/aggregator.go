package voice

import (
	"log/slog"
	"time"
)

// DefaultListGrace is how long a completed list request keeps accepting
// late account items before it is finalized.
const DefaultListGrace = 500 * time.Millisecond

type listRequestKind int

const (
	listAllAccounts listRequestKind = iota
	listCheckExists
)

// pendingList accumulates the item events of one enumeration command. The
// server delivers list results as N account items followed by one terminal
// success, with no count up front, and items may trail the terminal event.
type pendingList struct {
	kind        listRequestKind
	username    string // membership probe for listCheckExists
	accumulated []string
	// completedAt is zero until the terminal success arrives; every late
	// item bumps it forward, restarting the grace window.
	completedAt    time.Time
	mismatchLogged bool

	replyAll    chan<- []string
	replyExists chan<- bool
}

func (r *pendingList) resolve(success bool) {
	switch r.kind {
	case listAllAccounts:
		if success {
			sendReply(r.replyAll, r.accumulated)
		} else {
			sendReply(r.replyAll, []string{})
		}
	case listCheckExists:
		exists := false
		if success {
			for _, name := range r.accumulated {
				if name == r.username {
					exists = true
					break
				}
			}
		}
		sendReply(r.replyExists, exists)
	}
}

// listAggregator reconstructs multi-message list responses per command id.
type listAggregator struct {
	pending map[int32]*pendingList
	grace   time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func newListAggregator(grace time.Duration, now func() time.Time, logger *slog.Logger) *listAggregator {
	if grace <= 0 {
		grace = DefaultListGrace
	}
	return &listAggregator{
		pending: make(map[int32]*pendingList),
		grace:   grace,
		now:     now,
		logger:  logger,
	}
}

func (a *listAggregator) trackAll(id int32, reply chan<- []string) {
	a.pending[id] = &pendingList{kind: listAllAccounts, replyAll: reply}
}

func (a *listAggregator) trackExists(id int32, username string, reply chan<- bool) {
	a.pending[id] = &pendingList{kind: listCheckExists, username: username, replyExists: reply}
}

// addItem buffers one account item. Items with an unknown id are attributed
// to the sole pending request when exactly one exists; the client does not
// reliably echo command ids on item events.
func (a *listAggregator) addItem(id int32, username string) {
	if req, ok := a.pending[id]; ok {
		a.append(req, username)
		return
	}

	if len(a.pending) == 1 {
		for pendingID, req := range a.pending {
			if !req.mismatchLogged {
				req.mismatchLogged = true
				a.logger.Warn("attributing account item with unknown command id to sole pending list request",
					slog.Int("command_id", int(id)),
					slog.Int("pending_command_id", int(pendingID)),
				)
			}
			a.append(req, username)
		}
		return
	}

	a.logger.Warn("dropping account item without pending list request",
		slog.Int("command_id", int(id)),
		slog.Int("pending_requests", len(a.pending)),
	)
}

func (a *listAggregator) append(req *pendingList, username string) {
	req.accumulated = append(req.accumulated, username)
	if !req.completedAt.IsZero() {
		req.completedAt = a.now()
	}
}

// complete stamps the terminal success. The entry stays alive for the grace
// window to absorb out-of-order item delivery.
func (a *listAggregator) complete(id int32) bool {
	req, ok := a.pending[id]
	if !ok {
		return false
	}
	if req.completedAt.IsZero() {
		req.completedAt = a.now()
	}
	return true
}

// fail resolves the entry for id immediately without waiting for the grace
// window: empty result for enumerations, false for existence probes.
func (a *listAggregator) fail(id int32) bool {
	req, ok := a.pending[id]
	if !ok {
		return false
	}
	delete(a.pending, id)
	req.resolve(false)
	return true
}

// failAll resolves every entry as failed, e.g. on connection loss.
func (a *listAggregator) failAll() int {
	count := len(a.pending)
	for id, req := range a.pending {
		delete(a.pending, id)
		req.resolve(false)
	}
	return count
}

// sweep finalizes entries whose grace window has elapsed.
func (a *listAggregator) sweep() {
	now := a.now()
	for id, req := range a.pending {
		if req.completedAt.IsZero() || now.Sub(req.completedAt) < a.grace {
			continue
		}
		delete(a.pending, id)
		a.logger.Debug("finalizing account list",
			slog.Int("command_id", int(id)),
			slog.Int("count", len(req.accumulated)),
		)
		req.resolve(true)
	}
}

func (a *listAggregator) size() int {
	return len(a.pending)
}
