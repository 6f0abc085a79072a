package middleware

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/EgorLis/encoderpc/internal/rpclient"
)

// Job — хэндл запущенного задания. Подписка живёт до терминального
// статуса, Stop/Abort или закрытия канала.
type Job struct {
	id      JobID
	file    string
	session *Session
	sub     *rpclient.Subscription
	logger  *zap.Logger

	mu       sync.Mutex
	finished bool
	err      error
	updates  atomic.Int64
}

func (j *Job) ID() JobID {
	return j.id
}

func (j *Job) File() string {
	return j.file
}

// Updates — сколько уведомлений доставлено в callback.
func (j *Job) Updates() int64 {
	return j.updates.Load()
}

// Done закрывается, когда подписка задания снята.
func (j *Job) Done() <-chan struct{} {
	return j.sub.Done()
}

// Err — итог задания после Done: nil при успехе или Stop, ErrJobFailed /
// ErrJobAborted по статусу, ошибка канала при обрыве.
func (j *Job) Err() error {
	select {
	case <-j.sub.Done():
	default:
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished {
		return j.err
	}
	return j.sub.Err()
}

// Wait ждёт Done или отмену ctx.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.sub.Done():
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop снимает фильтр без обращения к серверу.
func (j *Job) Stop() {
	j.sub.Unsubscribe()
}

// Abort — encode.abort на сервере; при успехе подписка снимается с
// ErrJobAborted, если задание ещё не завершилось иначе.
func (j *Job) Abort(ctx context.Context) (bool, error) {
	removed, err := j.session.Abort(ctx, j.id)
	if err != nil {
		return false, err
	}
	if removed {
		j.finish(ErrJobAborted)
	}
	return removed, nil
}

func (j *Job) finish(err error) {
	// после Stop или обрыва итог уже зафиксирован подпиской
	if j.ended() {
		return
	}
	j.mu.Lock()
	if j.finished {
		j.mu.Unlock()
		return
	}
	j.finished = true
	j.err = err
	j.mu.Unlock()

	j.logger.Info("encode finished", zap.Error(err), zap.Int64("updates", j.updates.Load()))
	j.sub.Unsubscribe()
}

func (j *Job) ended() bool {
	select {
	case <-j.sub.Done():
		return true
	default:
		return false
	}
}

func (j *Job) isFinished() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finished
}

// terminal — завершает ли обновление задание, и с какой ошибкой.
func terminal(u Update) (bool, error) {
	switch strings.ToLower(u.Status()) {
	case "done", "finished", "complete", "completed", "success", "succeeded":
		return true, nil
	case "error", "failed", "failure":
		msg := u.stringField("error")
		if msg == "" {
			msg = u.stringField("message")
		}
		if msg != "" {
			return true, errors.Wrap(ErrJobFailed, msg)
		}
		return true, ErrJobFailed
	case "aborted", "canceled", "cancelled":
		return true, ErrJobAborted
	}
	return false, nil
}

const maxBacklog = 1024

// filter — обработчик уведомлений одного задания.
type filter struct {
	callback UpdateFunc
	logger   *zap.Logger

	mu      sync.Mutex
	job     *Job
	backlog []Update
}

func (f *filter) handle(n rpclient.Notification) {
	if n.Method != NotificationEncode {
		return
	}
	u := NewUpdate(n.Params)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.job == nil {
		if len(f.backlog) >= maxBacklog {
			f.logger.Warn("encode backlog full, dropping update")
			return
		}
		f.backlog = append(f.backlog, u)
		return
	}
	f.deliver(u)
}

// bind привязывает id и проигрывает накопленное в порядке прихода.
func (f *filter) bind(j *Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job = j
	backlog := f.backlog
	f.backlog = nil
	for _, u := range backlog {
		f.deliver(u)
	}
}

func (f *filter) deliver(u Update) {
	j := f.job
	if !u.ID().Equal(j.id) {
		return
	}
	if j.isFinished() || j.ended() {
		return
	}
	j.updates.Inc()
	if f.callback != nil {
		f.callback(u)
	}
	if done, err := terminal(u); done {
		j.finish(err)
	}
}
