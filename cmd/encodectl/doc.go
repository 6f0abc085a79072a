// Command encodectl запускает задания на сервере кодирования и показывает
// их прогресс.
//
//	encodectl encode /media/in.mkv -crf 23
//	encodectl encode --detach /media/in.mkv
//	encodectl abort 42
//	encodectl config show
package main
