package middleware

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Token — непрозрачный токен из auth.login.
type Token = json.RawMessage

// UpdateFunc получает params каждого уведомления своего задания.
// Все UpdateFunc канала вызываются по одному из горутины доставки, так что
// долгий обработчик задерживает остальные задания. Вызовы RPC (Encode,
// Abort) изнутри допустимы.
type UpdateFunc func(Update)

// Session — аутентифицированная сессия. Получить её можно только из Login,
// так что задание без токена запустить нельзя.
type Session struct {
	m     *Middleware
	user  string
	token Token
}

func (s *Session) User() string {
	return s.user
}

type startParams struct {
	Token Token `json:"token"`
	File  string `json:"file"`
	Opt   []any  `json:"opt"`
}

// Encode — encode.start с токеном сессии, затем постоянный фильтр на
// уведомления "encode" с id задания. Возвращается после регистрации
// фильтра, а не по завершении задания.
func (s *Session) Encode(ctx context.Context, callback UpdateFunc, file string, opts ...any) (*Job, error) {
	if opts == nil {
		opts = []any{}
	}
	logger := s.m.logger.With(zap.String("file", file))

	// фильтр регистрируется до вызова: уведомления, пришедшие между ответом
	// сервера и привязкой id, копятся в backlog
	f := &filter{callback: callback, logger: logger}
	sub := s.m.conn.Subscribe(NotificationEncode, f.handle)

	var id JobID
	err := s.m.conn.Call(ctx, MethodEncodeStart, startParams{Token: s.token, File: file, Opt: opts}, &id)
	if err != nil {
		sub.Unsubscribe()
		logger.Debug("encode.start failed", zap.Error(err))
		return nil, err
	}

	job := &Job{
		id:      id,
		file:    file,
		session: s,
		sub:     sub,
		logger:  logger.With(zap.Stringer("job", id)),
	}
	f.bind(job)

	job.logger.Info("encode started")
	return job, nil
}

// Abort — encode.abort по id. Возвращает ответ сервера: true, если
// задание было найдено и снято.
func (s *Session) Abort(ctx context.Context, id JobID) (bool, error) {
	var removed bool
	if err := s.m.conn.Call(ctx, MethodEncodeAbort, []JobID{id}, &removed); err != nil {
		return false, err
	}
	s.m.logger.Info("encode abort", zap.Stringer("job", id), zap.Bool("removed", removed))
	return removed, nil
}
