// Package middleware — тонкая обёртка над RPC-каналом сервера кодирования.
//
// Жизненный цикл:
//   - New(endpoint) — канал ещё не открыт.
//   - Login(ctx, user, pass) — подключение, auth.login, токен сохраняется в
//     Session. Без Session задание запустить нельзя.
//   - Encode(ctx, callback, file, opts...) — encode.start и фильтр
//     уведомлений "encode" по id задания. callback получает params каждого
//     уведомления своего задания.
//   - Job.Done/Err/Wait — завершение по статусу (done, failed, aborted...),
//     Job.Stop — снять фильтр, Job.Abort — encode.abort на сервере.
//   - Close — закрыть канал.
//
// Пример:
//
//	mw := middleware.New("ws://127.0.0.1:8080", middleware.WithLogger(logger))
//	defer mw.Close()
//
//	session, err := mw.Login(ctx, "user", "pass")
//	if err != nil { return err }
//
//	job, err := session.Encode(ctx, func(u middleware.Update) {
//	    fmt.Println(u.Status(), string(u.Raw()))
//	}, "/media/in.mkv", "-crf", 23)
//	if err != nil { return err }
//	return job.Wait(ctx)
package middleware
