// Package scheduler queues fetch-and-parse work and routes failures. It is
// the in-process replacement for an external task dispatcher: the engine
// never enqueues its own work, it only reports links and thread ids for the
// scheduler to turn into tasks.
package scheduler

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/url"

	"github.com/zvonler/ljcorpus/database"
	"github.com/zvonler/ljcorpus/fetch"
	"github.com/zvonler/ljcorpus/utils"
)

const (
	EntryQueue     = "entries"
	EntryListQueue = "entry-lists"
)

type Handler func(url string) error

type Task struct {
	Queue string
	URL   string
	tries int
}

type Scheduler struct {
	db         *database.ArchiveDB
	epoch      string
	maxRetries int
	handlers   map[string]Handler
	pending    []Task
}

// New creates a scheduler deduplicating against db. Tasks are named by a
// digest of epoch and URL, so re-enqueueing the same fetch within one epoch
// is a no-op; bumping the epoch allows a full rerun after a parser fix.
func New(db *database.ArchiveDB, epoch string) *Scheduler {
	return &Scheduler{
		db:         db,
		epoch:      epoch,
		maxRetries: 3,
		handlers:   make(map[string]Handler),
	}
}

func (s *Scheduler) Register(queue string, handler Handler) {
	s.handlers[queue] = handler
}

func (s *Scheduler) EnqueueEntry(url string) {
	s.enqueue(EntryQueue, url)
}

func (s *Scheduler) EnqueueEntries(urls []string) {
	for _, url := range urls {
		s.enqueue(EntryQueue, url)
	}
}

func (s *Scheduler) EnqueueEntryList(url string) {
	s.enqueue(EntryListQueue, url)
}

func (s *Scheduler) enqueue(queue, rawURL string) {
	rawURL = canonicalTaskURL(rawURL)
	claimed, err := s.db.ClaimTask(queue, rawURL, taskDigest(s.epoch, rawURL))
	if err != nil {
		log.Fatal(err)
	}
	if !claimed {
		fmt.Printf("queue %s: %s already enqueued, skipping\n", queue, rawURL)
		return
	}
	s.pending = append(s.pending, Task{Queue: queue, URL: rawURL})
}

func canonicalTaskURL(raw string) string {
	if parsed, err := url.Parse(raw); err == nil {
		return utils.TrimmedURL(parsed).String()
	}
	return raw
}

// Run drains the queue. Transport failures are retried a bounded number of
// times; anything else, or an exhausted retry budget, becomes a dead letter
// so one bad document never stalls the rest of the crawl.
func (s *Scheduler) Run() {
	for len(s.pending) > 0 {
		task := s.pending[0]
		s.pending = s.pending[1:]

		handler, ok := s.handlers[task.Queue]
		if !ok {
			panic(fmt.Sprintf("no handler registered for queue %q", task.Queue))
		}

		if err := handler(task.URL); err != nil {
			var transport *fetch.TransportError
			if errors.As(err, &transport) && task.tries+1 < s.maxRetries {
				task.tries++
				s.pending = append(s.pending, task)
				continue
			}
			log.Printf("Task failed: queue %s, url %s: %v", task.Queue, task.URL, err)
			s.db.InsertDeadLetter("", "", task.URL, err.Error())
		}
	}
}

// Pending reports how many tasks are waiting.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

func taskDigest(epoch, url string) string {
	h := sha1.New()
	h.Write([]byte(epoch))
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
