// Package config загружает настройки encodectl из TOML.
//
// Порядок приоритета: значения по умолчанию, затем файл, затем переменные
// окружения ENCODERPC_ENDPOINT, ENCODERPC_USER, ENCODERPC_PASS. Флаги
// командной строки применяются поверх уже в cmd/encodectl.
//
// Файл ищется по явному пути, иначе в $XDG_CONFIG_HOME/encoderpc/config.toml
// (или ~/.config/encoderpc/config.toml). Отсутствие файла не ошибка.
package config
