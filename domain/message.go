package domain

import "fmt"

// MessageKind はメッセージのペイロード種別を表します。
type MessageKind uint8

const (
	// MessageText はUTF-8テキストのメッセージです。
	MessageText MessageKind = iota + 1
	// MessageBinary はバイナリのメッセージです。
	MessageBinary
)

func (k MessageKind) String() string {
	switch k {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return fmt.Sprintf("MessageKind(%d)", uint8(k))
	}
}

// Message は1つの論理メッセージを表す値オブジェクトです。
// 生成後は変更されません。Payload()で返るスライスを書き換えてはいけません。
type Message struct {
	kind    MessageKind
	payload []byte
}

// NewMessage は種別とペイロードからMessageを生成します。
func NewMessage(kind MessageKind, payload []byte) Message {
	return Message{kind: kind, payload: payload}
}

// Text はテキストメッセージを生成します。
func Text(payload []byte) Message {
	return NewMessage(MessageText, payload)
}

// Binary はバイナリメッセージを生成します。
func Binary(payload []byte) Message {
	return NewMessage(MessageBinary, payload)
}

func (m Message) Kind() MessageKind { return m.kind }
func (m Message) Payload() []byte   { return m.payload }
func (m Message) Len() int          { return len(m.payload) }
