package room

import (
	"encoding/json"
	"sync"
	"time"

	appErr "qarena-service/pkg/errors"
	"qarena-service/pkg/logger"

	"go.uber.org/zap"
)

const (
	subscriberBuffer = 16
	disposeDelay     = 10 * time.Second
	idleTimeout      = 5 * time.Minute
)

// Actor hosts one session behind a mailbox. Messages are processed one at a
// time in arrival order; nothing outside the run loop touches the session.
type Actor struct {
	roomID  string
	session *session
	sched   *scheduler

	inbox chan func()
	done  chan struct{}

	subscribers  map[int64]chan OutgoingMessage
	seq          int64
	lastActivity time.Time
	finalized    bool

	onFinish func(roomID string, snap Snapshot)
	onClose  func(roomID string)

	closeOnce sync.Once
}

func newActor(roomID string, sess *session, onFinish func(string, Snapshot), onClose func(string)) *Actor {
	return &Actor{
		roomID:       roomID,
		session:      sess,
		sched:        newScheduler(time.Second),
		inbox:        make(chan func(), 64),
		done:         make(chan struct{}),
		subscribers:  make(map[int64]chan OutgoingMessage),
		lastActivity: time.Now(),
		onFinish:     onFinish,
		onClose:      onClose,
	}
}

func (a *Actor) run() {
	defer func() {
		a.sched.stopAll()
		for id, ch := range a.subscribers {
			delete(a.subscribers, id)
			close(ch)
		}
		if a.onClose != nil {
			a.onClose(a.roomID)
		}
	}()

	for {
		select {
		case fn := <-a.inbox:
			a.safely(fn)
		case <-a.sched.ticks():
			a.safely(a.handleTick)
		case <-a.done:
			return
		}
	}
}

// safely keeps a panic in one room's message handling from taking down the
// process or any other room.
func (a *Actor) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("room message handling panicked",
				zap.String("roomID", a.roomID),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
	a.afterHandle()
}

func (a *Actor) handleTick() {
	a.dispatch(a.session.tick())
	if len(a.subscribers) == 0 && a.session.status != StatusPlaying && time.Since(a.lastActivity) > idleTimeout {
		a.Close()
	}
}

func (a *Actor) afterHandle() {
	if a.finalized || a.session.status != StatusFinished {
		return
	}
	a.finalized = true
	if a.onFinish != nil {
		a.onFinish(a.roomID, a.session.snapshot())
	}
	a.sched.after(disposeDelay, a.Close)
}

func (a *Actor) post(fn func()) error {
	select {
	case a.inbox <- fn:
		return nil
	case <-a.done:
		return appErr.ErrRoomClosed
	}
}

// Close shuts the actor down; the run loop tears down timers and subscriber
// channels on exit.
func (a *Actor) Close() {
	a.closeOnce.Do(func() { close(a.done) })
}

type attachResult struct {
	ch  <-chan OutgoingMessage
	err error
}

// Attach registers a player's transport and returns their outbound channel.
func (a *Actor) Attach(playerID int64) (<-chan OutgoingMessage, error) {
	reply := make(chan attachResult, 1)
	err := a.post(func() {
		a.lastActivity = time.Now()
		events, err := a.session.attach(playerID)
		if err != nil {
			reply <- attachResult{err: err}
			return
		}
		if old, ok := a.subscribers[playerID]; ok {
			close(old)
		}
		ch := make(chan OutgoingMessage, subscriberBuffer)
		a.subscribers[playerID] = ch
		a.dispatch(events)
		reply <- attachResult{ch: ch}
	})
	if err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.ch, res.err
	case <-a.done:
		return nil, appErr.ErrRoomClosed
	}
}

// Detach reports a transport loss. The seat survives; the session decides
// whether a grace window opens.
func (a *Actor) Detach(playerID int64) {
	_ = a.post(func() {
		a.lastActivity = time.Now()
		if ch, ok := a.subscribers[playerID]; ok {
			delete(a.subscribers, playerID)
			close(ch)
		}
		a.dispatch(a.session.detach(playerID))
	})
}

// HandleMessage dispatches one named client message into the mailbox.
func (a *Actor) HandleMessage(playerID int64, msgType string, data json.RawMessage) error {
	return a.post(func() {
		a.lastActivity = time.Now()

		var (
			events []Event
			err    error
		)
		switch msgType {
		case "ready":
			events, err = a.session.ready(playerID)
		case "place_gate":
			var payload MovePayload
			if len(data) > 0 {
				if jsonErr := json.Unmarshal(data, &payload); jsonErr != nil {
					err = appErr.ErrInvalidMove
					break
				}
			}
			events, err = a.session.submitMove(playerID, MoveKindGate, payload)
		case "action":
			var payload MovePayload
			if len(data) > 0 {
				if jsonErr := json.Unmarshal(data, &payload); jsonErr != nil {
					err = appErr.ErrInvalidMove
					break
				}
			}
			events, err = a.session.submitMove(playerID, MoveKindAction, payload)
		case "measure":
			events, err = a.session.measure(playerID)
		case "end_turn":
			events, err = a.session.endTurn(playerID)
		case "forfeit":
			events, err = a.session.forfeit(playerID)
		case "leave":
			events, err = a.session.leave(playerID)
		case "ping":
			a.send(playerID, Event{Type: "pong", To: playerID, Data: h{"message": "pong"}})
			return
		default:
			err = appErr.ErrInvalidMove
		}

		if err != nil {
			// Rejections go back to the originating player only; room state
			// is untouched.
			a.send(playerID, Event{Type: "error", To: playerID, Data: h{"reason": err.Error()}})
			return
		}
		a.dispatch(events)
	})
}

func (a *Actor) dispatch(events []Event) {
	for _, ev := range events {
		a.seq++
		msg := OutgoingMessage{Type: ev.Type, Seq: a.seq, Data: ev.Data}
		if ev.To != 0 {
			a.deliver(ev.To, msg)
			continue
		}
		for id := range a.subscribers {
			a.deliver(id, msg)
		}
	}
}

func (a *Actor) send(playerID int64, ev Event) {
	a.seq++
	a.deliver(playerID, OutgoingMessage{Type: ev.Type, Seq: a.seq, Data: ev.Data})
}

func (a *Actor) deliver(playerID int64, msg OutgoingMessage) {
	ch, ok := a.subscribers[playerID]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		logger.Log.Warn("room subscriber channel full",
			zap.Int64("playerID", playerID),
			zap.String("roomID", a.roomID),
		)
	}
}
