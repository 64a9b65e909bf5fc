package imap

// RawMessage is one fetched message as the server returned it.
type RawMessage struct {
	UID uint32
	Raw []byte
}
