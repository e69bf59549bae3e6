package engine

import (
	"context"
	"time"

	"clicksprout/internal/logger"
)

// FireFunc executes one due post
type FireFunc func(ctx context.Context, postID string)

// Dispatcher decides when queued posts run. attempt is the post's retry count
// at the time it is queued.
type Dispatcher interface {
	Schedule(ctx context.Context, postID string, attempt int, at time.Time) error
	Cancel(ctx context.Context, postID string) error
	Start(fire FireFunc) error
	Stop()
}

const dueScanTag = "due-scan"

// LocalDispatcher keeps due posts in memory and fires them from a periodic
// scan. Fired posts run on a background context so Stop lets them finish.
type LocalDispatcher struct {
	queue     *dueQueue
	scheduler *Scheduler
	interval  time.Duration
	now       func() time.Time
	fire      FireFunc
}

func NewLocalDispatcher(interval time.Duration) *LocalDispatcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &LocalDispatcher{
		queue:    newDueQueue(),
		interval: interval,
		now:      time.Now,
	}
}

func (d *LocalDispatcher) Schedule(_ context.Context, postID string, _ int, at time.Time) error {
	d.queue.Push(postID, at)
	return nil
}

func (d *LocalDispatcher) Cancel(_ context.Context, postID string) error {
	d.queue.Remove(postID)
	return nil
}

// Len returns the number of queued posts
func (d *LocalDispatcher) Len() int {
	return d.queue.Len()
}

func (d *LocalDispatcher) Start(fire FireFunc) error {
	d.fire = fire
	d.scheduler = NewScheduler()
	if err := d.scheduler.ScheduleInterval(dueScanTag, d.interval, d.scan); err != nil {
		return err
	}
	d.scheduler.Start()
	return nil
}

// SetInterval changes the scan period, taking effect immediately when running
func (d *LocalDispatcher) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	d.interval = interval
	if d.scheduler == nil || !d.scheduler.IsRunning() {
		return nil
	}
	return d.scheduler.Reschedule(dueScanTag, interval, d.scan)
}

func (d *LocalDispatcher) Stop() {
	if d.scheduler != nil {
		d.scheduler.Stop()
	}
}

func (d *LocalDispatcher) scan() {
	due := d.queue.PopDue(d.now())
	if len(due) == 0 {
		return
	}
	logger.Debug("Due scan fired posts", "count", len(due), "queued", d.queue.Len())
	for _, id := range due {
		d.fire(context.Background(), id)
	}
}
