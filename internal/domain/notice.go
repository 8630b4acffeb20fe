package domain

import "time"

type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// NoticeLifetime applies to success and error notices. Info notices stay
// until replaced.
const NoticeLifetime = 5 * time.Second

type StatusNotice struct {
	Message string
	Kind    NoticeKind
}

func (n StatusNotice) Empty() bool {
	return n.Message == ""
}

func (n StatusNotice) Expires() bool {
	return n.Kind == NoticeSuccess || n.Kind == NoticeError
}
