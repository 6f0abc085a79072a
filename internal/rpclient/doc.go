// Package rpclient реализует JSON-RPC 2.0 клиент поверх WebSocket.
// Клиент подключается к серверу (ws:// или wss://), отправляет запросы и
// сопоставляет ответы по id, а входящие уведомления (без id) раздаёт
// подписчикам через реестр Dispatcher.
//
//   - Call / CallAsync: вызов метода; CallAsync возвращает FutureResult,
//     результат забирается через Receive(ctx, &out).
//   - Subscribe: подписка на уведомления по имени метода. Обработчики
//     вызываются по одному из отдельной горутины доставки: уведомления в
//     порядке прихода, подписчики в порядке регистрации. Из обработчика
//     можно делать Call и снимать подписки, readLoop при этом продолжает
//     читать ответы.
//
// События (колбэки поля структуры):
//   - OnConnected, OnDisconnected, OnError, OnRequest, OnNotification.
//
// Безопасность и устойчивость:
//   - Запись в сокет сериализована (мьютекс + write-deadline).
//   - Keep-alive через ping/pong; дедлайн чтения сдвигается и на pong, и на
//     любой принятый кадр. Реконнекта нет: при обрыве все ожидающие
//     вызовы завершаются ошибкой чтения, подписки закрываются.
//
// Пример:
//
//	c := rpclient.New("ws://127.0.0.1:8080", rpclient.WithLogger(logger))
//	if err := c.Connect(ctx); err != nil { log.Fatal(err) }
//	defer c.Close()
//
//	var token json.RawMessage
//	err := c.Call(ctx, "auth.login", map[string]string{"user": u, "pass": p}, &token)
//
//	sub := c.Subscribe("encode", func(n rpclient.Notification) {
//	    fmt.Println(string(n.Params))
//	})
//	defer sub.Unsubscribe()
package rpclient
