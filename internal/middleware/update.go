package middleware

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xfrr/goffmpeg/models"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// JobID — непрозрачный идентификатор задания, который вернул encode.start.
type JobID json.RawMessage

func (id JobID) String() string {
	return string(id)
}

func (id JobID) MarshalJSON() ([]byte, error) {
	if len(id) == 0 {
		return []byte("null"), nil
	}
	return id, nil
}

func (id *JobID) UnmarshalJSON(data []byte) error {
	*id = append((*id)[:0], data...)
	return nil
}

// Equal сравнивает по значению: 1 и 1.0 равны, порядок ключей не важен.
func (id JobID) Equal(other JobID) bool {
	a, errA := canonicalJSON(id)
	b, errB := canonicalJSON(other)
	if errA != nil || errB != nil {
		return len(id) > 0 && bytes.Equal(id, other)
	}
	return a == b
}

func canonicalJSON(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("empty value")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	if v == nil {
		return "", errors.New("null value")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Update — params одного уведомления "encode". Поля кроме id не
// интерпретируются, кроме status/error для определения завершения.
type Update struct {
	raw json.RawMessage
}

func NewUpdate(params json.RawMessage) Update {
	return Update{raw: params}
}

// Raw — params ровно в том виде, в каком их прислал сервер.
func (u Update) Raw() json.RawMessage {
	return u.raw
}

func (u Update) ID() JobID {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(u.raw, &head); err != nil {
		return nil
	}
	return JobID(head.ID)
}

// Status — поле status, если это строка.
func (u Update) Status() string {
	return u.stringField("status")
}

func (u Update) Decode(v any) error {
	return json.Unmarshal(u.raw, v)
}

// Struct — params в виде google.protobuf.Struct.
func (u Update) Struct() (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(u.raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

// FFmpegProgress раскладывает типичные поля прогресса ffmpeg
// (frames, time, bitrate, progress, speed). Отсутствующие поля пустые.
func (u Update) FFmpegProgress() (models.Progress, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(u.raw, &fields); err != nil {
		return models.Progress{}, err
	}

	p := models.Progress{
		FramesProcessed: scalarString(fields["frames"]),
		CurrentTime:     scalarString(fields["time"]),
		CurrentBitrate:  scalarString(fields["bitrate"]),
		Speed:           scalarString(fields["speed"]),
	}
	if s := scalarString(fields["progress"]); s != "" {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return models.Progress{}, errors.Wrap(err, "progress")
		}
		p.Progress = v
	}
	return p, nil
}

func (u Update) String() string {
	return string(u.raw)
}

func (u Update) stringField(key string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(u.raw, &fields); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(fields[key], &s); err != nil {
		return ""
	}
	return s
}

// scalarString — строка или число JSON как текст; всё остальное пусто.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
