package channels

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// eventQueueDelegate receives the outcome of every frame handed to the
// queue. Exactly one of the three outcome methods is called per processed
// frame, so no frame is lost without trace.
type eventQueueDelegate interface {
	eventQueueDidReceiveEvent(event *Event, channelName string)
	eventQueueDidFailToDecryptEvent(payload map[string]interface{}, channelName string)
	eventQueueDidReceiveInvalidEvent(payload map[string]interface{})

	// eventQueueReloadDecryptionKeySync must block until the channel's
	// decryption key has been refreshed. It is called on the queue's worker
	// goroutine; invoking it from the callback goroutine it bridges to will
	// deadlock.
	eventQueueReloadDecryptionKeySync(channel *Channel)
}

type queueJob struct {
	frame   map[string]interface{}
	channel *Channel
}

// eventQueue resolves raw frames into events on a single worker goroutine,
// preserving arrival order per connection. Frames for channels that have
// already been unsubscribed are dropped at the door.
type eventQueue struct {
	channels *Channels
	delegate eventQueueDelegate
	jobs     chan queueJob
	id       string
}

func newEventQueue(channels *Channels, delegate eventQueueDelegate, id string) *eventQueue {
	q := &eventQueue{
		channels: channels,
		delegate: delegate,
		jobs:     make(chan queueJob, 256),
		id:       id,
	}
	go q.run()
	return q
}

func (q *eventQueue) enqueue(frame map[string]interface{}) {
	var channel *Channel
	if name, ok := frame[jsonKeyChannel].(string); ok {
		channel = q.channels.Find(name)
		if channel == nil {
			// unsubscribed in the meantime, drop the frame
			log.WithField("channel", name).Tracef("eventQueue(%s): dropping frame for unknown channel", q.id)
			return
		}
	}
	q.jobs <- queueJob{frame: frame, channel: channel}
}

func (q *eventQueue) run() {
	for job := range q.jobs {
		q.process(job)
	}
}

func (q *eventQueue) process(job queueJob) {
	channelName := ""
	if job.channel != nil {
		channelName = job.channel.Name
	}

	event, err := q.makeEvent(job)
	if err == nil {
		q.delegate.eventQueueDidReceiveEvent(event, channelName)
		return
	}

	switch {
	case errors.Is(err, ErrInvalidDecryptionKey) && job.channel != nil:
		// The key we hold may be stale; block until it has been refreshed
		// and retry exactly once.
		q.delegate.eventQueueReloadDecryptionKeySync(job.channel)
		event, err = q.makeEvent(job)
		if err == nil {
			q.delegate.eventQueueDidReceiveEvent(event, channelName)
			return
		}
		q.delegate.eventQueueDidFailToDecryptEvent(job.frame, channelName)
	case errors.Is(err, ErrInvalidDecryptionKey), errors.Is(err, ErrInvalidEncryptedData):
		// A key reload cannot fix a malformed nonce or ciphertext, so no
		// retry is attempted.
		q.delegate.eventQueueDidFailToDecryptEvent(job.frame, channelName)
	default:
		q.delegate.eventQueueDidReceiveInvalidEvent(job.frame)
	}
}

func (q *eventQueue) makeEvent(job queueJob) (*Event, error) {
	key := ""
	if job.channel != nil {
		key = job.channel.decryptionKeyValue()
	}
	return makeEvent(job.frame, key)
}
